// Package shopmesh provides a high-level façade over the orchestration engine
// and its collaborators (catalog, search, guardrails, memory, cart, checkout,
// transport). Most applications interact with this package by:
//  1. Loading a config.Config (file + environment)
//  2. Creating a ShopMesh via New()
//  3. Either calling Chat() directly or running Serve() for the HTTP surface
//
// All defaults are safe for local development: in-memory conversation store,
// keyword-only search and no payments until the respective backends are
// configured.
package shopmesh

import (
	"context"
	"fmt"
	"os"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/shopmesh/cart"
	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/checkout"
	"github.com/hupe1980/shopmesh/config"
	"github.com/hupe1980/shopmesh/guardrail"
	"github.com/hupe1980/shopmesh/logging"
	"github.com/hupe1980/shopmesh/memory"
	"github.com/hupe1980/shopmesh/memory/redisstore"
	"github.com/hupe1980/shopmesh/model"
	"github.com/hupe1980/shopmesh/model/anthropic"
	"github.com/hupe1980/shopmesh/model/openai"
	"github.com/hupe1980/shopmesh/orchestrator"
	"github.com/hupe1980/shopmesh/order"
	"github.com/hupe1980/shopmesh/search"
	"github.com/hupe1980/shopmesh/search/memindex"
	"github.com/hupe1980/shopmesh/search/qdrantindex"
	"github.com/hupe1980/shopmesh/server"
	"github.com/hupe1980/shopmesh/tool"
)

// Options override individual collaborators during construction. Anything
// left nil is built from the config.
type Options struct {
	Logger      logging.Logger
	Model       model.Model
	Catalog     catalog.Store
	MemoryStore memory.Store
	VectorIndex search.VectorIndex
	Orders      order.Store
	Provider    checkout.Provider
}

// ShopMesh aggregates the wired subsystems behind one handle.
type ShopMesh struct {
	cfg      config.Config
	logger   logging.Logger
	catalog  catalog.Store
	index    search.VectorIndex
	search   *search.Service
	ledger   *cart.Ledger
	memory   *memory.Manager
	engine   *orchestrator.Engine
	checkout *checkout.Service
	server   *server.Server
}

// New wires a complete assistant from configuration.
func New(cfg config.Config, optFns ...func(o *Options)) (*ShopMesh, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(&logging.Config{
			Level:  logging.ParseLevel(cfg.Logging.Level),
			Format: cfg.Logging.Format,
			Output: os.Stdout,
		})
	}

	store := opts.Catalog
	if store == nil {
		loaded, err := catalog.LoadFromFile(cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		store = loaded
	}

	index, err := buildIndex(cfg, opts, logger)
	if err != nil {
		return nil, err
	}
	searchSvc := search.New(index, store, func(o *search.Options) {
		o.Logger = logger
	})

	ledger := cart.NewLedger(store, func(o *cart.Options) {
		if cfg.Cart.TaxRate > 0 {
			o.TaxRate = cfg.Cart.TaxRate
		}
		o.Logger = logger
	})

	memStore := opts.MemoryStore
	if memStore == nil {
		if cfg.Redis.Enabled {
			memStore = redisstore.NewFromAddr(
				cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
				func(o *redisstore.Options) {
					if cfg.Redis.TTLMinutes > 0 {
						o.TTL = time.Duration(cfg.Redis.TTLMinutes) * time.Minute
					}
				},
			)
		} else {
			memStore = memory.NewInMemoryStore()
		}
	}
	mem := memory.NewManager(memStore, func(o *memory.ManagerOptions) {
		o.TokenBudget = cfg.Engine.TokenBudget
		o.Logger = logger
	})

	orders := opts.Orders
	if orders == nil {
		orders = order.NewSeededStore()
	}

	registry := tool.NewRegistry()
	registry.MustRegister(tool.NewSearchProductsTool(searchSvc))
	registry.MustRegister(tool.NewProductDetailsTool(store))
	registry.MustRegister(tool.NewBrowseCategoryTool(store))
	registry.MustRegister(tool.NewAddToCartTool(ledger))
	registry.MustRegister(tool.NewRemoveFromCartTool(ledger))
	registry.MustRegister(tool.NewUpdateCartQuantityTool(ledger))
	registry.MustRegister(tool.NewViewCartTool(ledger))
	registry.MustRegister(tool.NewOrderStatusTool(orders))
	executor := tool.NewExecutor(registry, logger)

	llm := opts.Model
	if llm == nil {
		llm = buildModel(cfg)
	}

	guardrails := guardrail.New(guardrailConfig(cfg), func(o *guardrail.Options) {
		o.Logger = logger
	})

	engine := orchestrator.New(
		llm, registry, executor, guardrails, mem, searchSvc, ledger,
		func(o *orchestrator.Options) {
			o.MaxIterations = cfg.Engine.MaxIterations
			o.Logger = logger
		},
	)

	var checkoutSvc *checkout.Service
	provider := opts.Provider
	if provider == nil && cfg.Stripe.Enabled {
		provider = checkout.NewStripeProvider(
			cfg.Stripe.APIKey, cfg.Stripe.WebhookSecret,
			func(o *checkout.StripeOptions) {
				if cfg.Stripe.SuccessURL != "" {
					o.SuccessURL = cfg.Stripe.SuccessURL
				}
				if cfg.Stripe.CancelURL != "" {
					o.CancelURL = cfg.Stripe.CancelURL
				}
			},
		)
	}
	if provider != nil {
		checkoutSvc = checkout.NewService(provider, ledger, func(o *checkout.Options) {
			o.Logger = logger
		})
	}

	srv := server.New(engine, store, ledger, checkoutSvc, func(o *server.Options) {
		o.Logger = logger
	})

	return &ShopMesh{
		cfg:      cfg,
		logger:   logger,
		catalog:  store,
		index:    index,
		search:   searchSvc,
		ledger:   ledger,
		memory:   mem,
		engine:   engine,
		checkout: checkoutSvc,
		server:   srv,
	}, nil
}

func buildIndex(cfg config.Config, opts Options, logger logging.Logger) (search.VectorIndex, error) {
	if opts.VectorIndex != nil {
		return opts.VectorIndex, nil
	}
	if cfg.Qdrant.Enabled {
		embedder := memindex.NewOpenAIEmbedder()
		idx, err := qdrantindex.New(qdrantindex.Config{
			URL:            cfg.Qdrant.URL,
			CollectionName: cfg.Qdrant.Collection,
			APIKey:         cfg.Qdrant.APIKey,
		}, embedder, func(o *qdrantindex.Options) {
			o.Logger = logger
		})
		if err != nil {
			return nil, fmt.Errorf("connect qdrant: %w", err)
		}
		return idx, nil
	}
	if cfg.Model.Provider == "openai" && cfg.Model.APIKey != "" {
		return memindex.New(memindex.NewOpenAIEmbedder(), func(o *memindex.Options) {
			o.CachePath = cfg.Embeddings.CachePath
			o.Logger = logger
		}), nil
	}
	// No embedding source; hybrid search degrades to keyword-only.
	return nil, nil
}

func buildModel(cfg config.Config) model.Model {
	switch cfg.Model.Provider {
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Model.Name)
			}
			o.Temperature = cfg.Model.Temperature
			o.MaxTokens = cfg.Model.MaxTokens
			o.APIKey = cfg.Model.APIKey
		})
	case "mock":
		return model.NewMockModel(cfg.Model.Name)
	default:
		client := openaisdk.NewClient()
		if cfg.Model.APIKey != "" {
			client = openaisdk.NewClient(option.WithAPIKey(cfg.Model.APIKey))
		}
		return openai.NewModelFromClient(&client, func(o *openai.Options) {
			if cfg.Model.Name != "" {
				o.Model = cfg.Model.Name
			}
			o.Temperature = cfg.Model.Temperature
			o.MaxCompletionTokens = cfg.Model.MaxTokens
		})
	}
}

func guardrailConfig(cfg config.Config) guardrail.Config {
	gc := guardrail.DefaultConfig()
	gc.CompetitorBrands = append(gc.CompetitorBrands, cfg.Guardrails.ExtraCompetitors...)
	gc.OffTopicKeywords = append(gc.OffTopicKeywords, cfg.Guardrails.ExtraOffTopic...)
	gc.PromoWhitelist = append(gc.PromoWhitelist, cfg.Guardrails.AllowedPromoCodes...)
	return gc
}

// BuildIndex embeds the catalog into the configured vector index. Call once
// at startup; a no-op when search is keyword-only.
func (s *ShopMesh) BuildIndex(ctx context.Context) error {
	type builder interface {
		Build(ctx context.Context, products []catalog.Product) error
	}
	idx, ok := s.index.(builder)
	if !ok {
		return nil
	}
	return idx.Build(ctx, s.catalog.All(ctx))
}

// ProcessMessage streams response frames for one shopper message.
func (s *ShopMesh) ProcessMessage(ctx context.Context, userID, sessionID, message string) <-chan orchestrator.Frame {
	return s.engine.ProcessMessage(ctx, userID, sessionID, message)
}

// Chat is a synchronous helper that drains the frame stream and returns the
// final reply text plus any surfaced products.
func (s *ShopMesh) Chat(ctx context.Context, userID, sessionID, message string) (string, []catalog.Product, error) {
	var (
		reply    string
		products []catalog.Product
	)
	for frame := range s.engine.ProcessMessage(ctx, userID, sessionID, message) {
		switch frame.Type {
		case orchestrator.FrameText:
			reply += frame.Content
		case orchestrator.FrameProducts:
			products = frame.Products
		}
	}
	if err := ctx.Err(); err != nil {
		return reply, products, err
	}
	return reply, products, nil
}

// Serve runs the HTTP/WebSocket server until the context is cancelled.
func (s *ShopMesh) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	return s.server.Start(ctx, addr)
}

// Engine exposes the orchestration engine.
func (s *ShopMesh) Engine() *orchestrator.Engine { return s.engine }

// Catalog exposes the product store.
func (s *ShopMesh) Catalog() catalog.Store { return s.catalog }

// Cart exposes the cart ledger.
func (s *ShopMesh) Cart() *cart.Ledger { return s.ledger }

// Checkout exposes the payment service; nil when payments are disabled.
func (s *ShopMesh) Checkout() *checkout.Service { return s.checkout }
