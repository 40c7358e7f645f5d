package handler

import (
	"log/slog"

	"github.com/hitoshi/storefront/internal/address"
	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/diagnosis"
	"github.com/hitoshi/storefront/internal/envelope"
	"github.com/hitoshi/storefront/internal/order"
	"github.com/hitoshi/storefront/internal/security"
	"github.com/hitoshi/storefront/internal/session"
	"github.com/hitoshi/storefront/internal/user"
)

// ServiceFactory はセッションのAPIクライアントに紐づいたドメインサービスを生成する。
// サービスは状態を持たないため、リクエストごとに生成する。
type ServiceFactory struct {
	normalizer *envelope.Normalizer
	sanitizer  *security.ContentSanitizer
	images     diagnosis.ImageSource
	classifier order.Classifier
	diagnosis  diagnosis.Options
	logger     *slog.Logger
}

// ServiceFactoryConfig はServiceFactoryの依存関係。
type ServiceFactoryConfig struct {
	Normalizer       *envelope.Normalizer
	Sanitizer        *security.ContentSanitizer
	Images           diagnosis.ImageSource
	PendingAsFailure bool
	Diagnosis        diagnosis.Options
	Logger           *slog.Logger
}

// NewServiceFactory はServiceFactoryを生成する。
func NewServiceFactory(cfg ServiceFactoryConfig) *ServiceFactory {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = envelope.NewNormalizer(cfg.Logger, nil)
	}
	if cfg.Sanitizer == nil {
		cfg.Sanitizer = security.NewContentSanitizer()
	}
	return &ServiceFactory{
		normalizer: cfg.Normalizer,
		sanitizer:  cfg.Sanitizer,
		images:     cfg.Images,
		classifier: order.Classifier{PendingAsFailure: cfg.PendingAsFailure},
		diagnosis:  cfg.Diagnosis,
		logger:     cfg.Logger,
	}
}

func (f *ServiceFactory) Users(st *session.State) *user.Service {
	return user.NewService(st.Client, f.normalizer, f.logger)
}

func (f *ServiceFactory) Products(st *session.State) *catalog.ProductService {
	return catalog.NewProductService(st.Client, f.normalizer, f.sanitizer, f.logger)
}

func (f *ServiceFactory) Categories(st *session.State) *catalog.CategoryService {
	return catalog.NewCategoryService(st.Client, f.normalizer)
}

func (f *ServiceFactory) Ratings(st *session.State) *catalog.RatingService {
	return catalog.NewRatingService(st.Client, f.normalizer, f.logger)
}

func (f *ServiceFactory) Promotions(st *session.State) *catalog.PromotionService {
	return catalog.NewPromotionService(st.Client, f.normalizer)
}

func (f *ServiceFactory) Orders(st *session.State) *order.Service {
	return order.NewService(st.Client, f.normalizer, f.classifier, f.logger)
}

func (f *ServiceFactory) Payments(st *session.State) *order.PaymentService {
	return order.NewPaymentService(st.Client, f.normalizer, f.logger)
}

func (f *ServiceFactory) Addresses(st *session.State) *address.Service {
	return address.NewService(st.Client, f.normalizer, f.logger)
}

func (f *ServiceFactory) Diagnosis(st *session.State) *diagnosis.Service {
	return diagnosis.NewService(st.Client, f.normalizer, f.sanitizer, f.images, f.diagnosis, f.logger)
}
