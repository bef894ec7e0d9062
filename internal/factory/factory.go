package factory

import (
	"fmt"

	"github.com/anime-shed/street-inspector-go/internal/config"
	"github.com/anime-shed/street-inspector-go/internal/notify"
	"github.com/anime-shed/street-inspector-go/internal/storage"
)

// NotifierType represents the alert transports
type NotifierType string

const (
	SMTPNotifier     NotifierType = "smtp"
	TelegramNotifier NotifierType = "telegram"
	NoNotifier       NotifierType = "none"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	AzureStorage      StorageType = "azure"
	CloudinaryStorage StorageType = "cloudinary"
	NoStorage         StorageType = "none"
)

// NotifierFactory creates notifiers
type NotifierFactory interface {
	CreateNotifier(notifierType NotifierType) (notify.Notifier, error)
}

// StorageFactory creates object stores
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ObjectStore, error)
}

type notifierFactory struct {
	cfg config.NotifierConfig
}

// NewNotifierFactory creates a new notifier factory
func NewNotifierFactory(cfg config.NotifierConfig) NotifierFactory {
	return &notifierFactory{cfg: cfg}
}

// CreateNotifier creates a notifier based on the specified type
func (f *notifierFactory) CreateNotifier(notifierType NotifierType) (notify.Notifier, error) {
	switch notifierType {
	case SMTPNotifier:
		return notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     f.cfg.SMTPHost,
			Port:     f.cfg.SMTPPort,
			From:     f.cfg.FromEmail,
			Password: f.cfg.EmailPassword,
			To:       f.cfg.ToEmail,
		}), nil
	case TelegramNotifier:
		return notify.NewTelegramNotifier(f.cfg.TelegramToken, f.cfg.TelegramChatID, f.cfg.Timeout), nil
	case NoNotifier:
		return notify.Disabled{}, nil
	default:
		return nil, fmt.Errorf("unsupported notifier type: %s", notifierType)
	}
}

type storageFactory struct {
	cfg config.StorageConfig
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg config.StorageConfig) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates an object store; NoStorage yields nil
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ObjectStore, error) {
	switch storageType {
	case AzureStorage:
		store, err := storage.NewAzureStore(f.cfg.AzureAccount, f.cfg.AzureKey, f.cfg.AzureContainer)
		if err != nil {
			return nil, err
		}
		return store, nil
	case CloudinaryStorage:
		store, err := storage.NewCloudinaryStore(f.cfg.CloudinaryURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case NoStorage:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	NotifierFactory NotifierFactory
	StorageFactory  StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		NotifierFactory: NewNotifierFactory(cfg.Notifier),
		StorageFactory:  NewStorageFactory(cfg.Storage),
	}
}

// Notifier builds the configured transport
func (f *ComponentFactory) Notifier(cfg *config.Config) (notify.Notifier, error) {
	return f.NotifierFactory.CreateNotifier(NotifierType(cfg.Notifier.Transport))
}

// Store builds the configured object store, nil when uploads are not kept
func (f *ComponentFactory) Store(cfg *config.Config) (storage.ObjectStore, error) {
	return f.StorageFactory.CreateStorage(StorageType(cfg.Storage.Backend))
}
