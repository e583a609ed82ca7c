package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/Payline/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	UpsertByExternalID(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	DeleteByExternalID(ctx context.Context, externalID string) (bool, error)
	List(ctx context.Context, offset, limit int) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
	GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error)
	UpsertPreferences(ctx context.Context, prefs *models.UserPreferences) error
}

// PaymentCustomerRepository defines the interface for the user to provider customer mapping
type PaymentCustomerRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.PaymentCustomer, error)
	GetByProviderCustomerID(ctx context.Context, providerCustomerID string) (*models.PaymentCustomer, error)
	// CreateIfNotExists inserts the mapping unless one is already committed and
	// returns whichever row is stored afterwards.
	CreateIfNotExists(ctx context.Context, pc *models.PaymentCustomer) (bool, *models.PaymentCustomer, error)
}

// CatalogRepository defines the interface for products and prices
type CatalogRepository interface {
	UpsertProduct(ctx context.Context, product *models.Product) error
	UpsertPrice(ctx context.Context, price *models.Price) error
	GetProductByProviderID(ctx context.Context, providerProductID string) (*models.Product, error)
	GetPriceByProviderID(ctx context.Context, providerPriceID string) (*models.Price, error)
}

// SubscriptionRepository defines the interface for subscription state
type SubscriptionRepository interface {
	Upsert(ctx context.Context, sub *models.Subscription) error
	GetByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error)
	UpdateByProviderID(ctx context.Context, providerSubscriptionID string, updates map[string]interface{}) (bool, error)
	// FindLatestActiveByUser returns the newest subscription in an active
	// status with Price and Price.Product preloaded.
	FindLatestActiveByUser(ctx context.Context, userID string) (*models.Subscription, error)
}

// PaymentRepository defines the interface for payment history
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	UpdateByIntentID(ctx context.Context, intentID string, updates map[string]interface{}) (bool, error)
	UpsertByIntentID(ctx context.Context, payment *models.Payment) error
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]models.Payment, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

// ContactRepository defines the interface for contact form submissions
type ContactRepository interface {
	Create(ctx context.Context, submission *models.ContactSubmission) error
	GetByID(ctx context.Context, id string) (*models.ContactSubmission, error)
	List(ctx context.Context, filter ContactFilter) ([]models.ContactSubmission, error)
	Count(ctx context.Context, status string) (int64, error)
	UpdateStatus(ctx context.Context, id, status string) (bool, error)
}

// NewsletterRepository defines the interface for newsletter subscribers
type NewsletterRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.NewsletterSubscriber, error)
	Create(ctx context.Context, subscriber *models.NewsletterSubscriber) error
	Save(ctx context.Context, subscriber *models.NewsletterSubscriber) error
	Stats(ctx context.Context) (*NewsletterStats, error)
}

// WebhookEventRepository defines the interface for webhook deduplication
type WebhookEventRepository interface {
	CreateIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkProcessed(ctx context.Context, id uint, processingError string) error
}

// ContactFilter narrows and orders a contact submission listing.
type ContactFilter struct {
	Status    string
	Ascending bool
	Offset    int
	Limit     int
}

// NewsletterStats aggregates subscriber counts.
type NewsletterStats struct {
	Active             int64      `json:"active"`
	Unsubscribed       int64      `json:"unsubscribed"`
	Total              int64      `json:"total"`
	FirstSubscription  *time.Time `json:"firstSubscription"`
	LatestSubscription *time.Time `json:"latestSubscription"`
}

// Repositories struct holds all repository instances
type Repositories struct {
	User            UserRepository
	PaymentCustomer PaymentCustomerRepository
	Catalog         CatalogRepository
	Subscription    SubscriptionRepository
	Payment         PaymentRepository
	Contact         ContactRepository
	Newsletter      NewsletterRepository
	WebhookEvent    WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:            NewUserRepository(db),
		PaymentCustomer: NewPaymentCustomerRepository(db),
		Catalog:         NewCatalogRepository(db),
		Subscription:    NewSubscriptionRepository(db),
		Payment:         NewPaymentRepository(db),
		Contact:         NewContactRepository(db),
		Newsletter:      NewNewsletterRepository(db),
		WebhookEvent:    NewWebhookEventRepository(db),
	}
}
