// Package guardrail implements deterministic business-rule validation on both
// sides of the language model: inbound user text is classified before any
// model call (off-topic, competitor mentions) and outbound model text is
// scrubbed after generation (PII, fabricated discounts, unverified stock
// claims). The engine is stateless; all configuration is an immutable value
// provided at construction, so checks stay deterministic and safe to run
// concurrently across sessions.
package guardrail

import (
	"regexp"
	"strings"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/logging"
)

// Reason categorizes why a guardrail fired.
type Reason string

const (
	// ReasonOffTopic marks input unrelated to shopping.
	ReasonOffTopic Reason = "off_topic"
	// ReasonCompetitor marks input mentioning a deny-listed competitor brand.
	ReasonCompetitor Reason = "competitor"
	// ReasonPII marks content containing personally identifiable information.
	ReasonPII Reason = "pii"
	// ReasonUnverifiedClaim marks output claiming stock or discounts without tool corroboration.
	ReasonUnverifiedClaim Reason = "unverified_claim"
)

// Verdict is the result of a single input check. It carries no state across calls.
type Verdict struct {
	Allowed   bool
	Reason    Reason
	Refusal   string // canned user-facing refusal when blocked
	Sanitized string // input text with PII removed
}

// OutputContext supplies the tool evidence for the current turn so output
// checks can verify availability claims against actually-returned products.
type OutputContext struct {
	Products []catalog.Product
}

// Config is the immutable rule set for an Engine. Loaded once, never mutated
// at runtime.
type Config struct {
	CompetitorBrands []string
	OffTopicKeywords []string
	ShoppingWords    []string
	PromoWhitelist   []string
}

// DefaultConfig mirrors the production deny lists.
func DefaultConfig() Config {
	return Config{
		CompetitorBrands: []string{
			"amazon basics", "target brand", "walmart brand",
			"great value", "kirkland", "365 everyday value",
		},
		OffTopicKeywords: []string{
			"recipe", "cooking tips", "weather forecast", "stock market", "investment advice",
			"medical advice", "diagnos", "politic", "religion",
			"tell me a joke", "write a poem", "homework", "math problem",
		},
		ShoppingWords: []string{
			"product", "buy", "price", "cart", "order", "shop", "find",
			"shoe", "shirt", "laptop", "headphone", "watch", "bag",
			"dress", "jacket", "boot", "sneaker", "electronics",
			"recommend", "suggest", "show me", "looking for", "need",
			"cheap", "expensive", "deal", "sale", "brand", "size",
			"color", "compare", "review", "stock", "deliver",
		},
	}
}

var piiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),                          // SSN
	regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`),        // credit card
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), // email
	regexp.MustCompile(`\b\d{3}[-.]\d{3}[-.]\d{4}\b`),                    // phone
}

var (
	promoPattern = regexp.MustCompile(`(?i)\b(?:use code|coupon|promo code|discount code)\s+(\w+)`)
	stockPattern = regexp.MustCompile(`(?i)\b(?:in stock(?: now)?|available (?:now|today)|ships today)\b`)
)

const (
	redactedToken   = "[REDACTED]"
	competitorToken = "[competitor product]"
	promoToken      = "[discount codes are not available at this time]"
	stockToken      = "[availability not yet confirmed]"

	// RefusalCompetitor is emitted without any model call when a competitor
	// brand is mentioned.
	RefusalCompetitor = "I can only help with products from our own catalog. " +
		"Would you like me to find something similar from our store?"

	// RefusalOffTopic is emitted without any model call for non-shopping input.
	RefusalOffTopic = "I'm a shopping assistant, so I'm best at helping you find " +
		"products, manage your cart, and track orders. What can I help you shop for?"
)

// Engine applies the configured rules. Safe for concurrent use.
type Engine struct {
	cfg    Config
	logger logging.Logger
}

// Options configures optional Engine collaborators.
type Options struct {
	Logger logging.Logger
}

// New constructs an Engine from an immutable config.
func New(cfg Config, optFns ...func(o *Options)) *Engine {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{cfg: cfg, logger: opts.Logger}
}

// CheckInput classifies a user message before it reaches the model.
//
// Competitor mentions take precedence over everything else, including
// messages that also carry a legitimate product query: ambiguity resolves to
// block. Off-topic keywords block only when no shopping vocabulary is present
// at all, so shopping-adjacent questions pass. Anything the classifier cannot
// make sense of is allowed through (availability over restrictiveness), but
// PII is scrubbed from the sanitized text either way.
func (e *Engine) CheckInput(text string) Verdict {
	sanitized := stripPII(text)
	if sanitized != text {
		e.logger.Info("guardrail.input.pii_redacted")
	}

	lower := strings.ToLower(text)

	for _, brand := range e.cfg.CompetitorBrands {
		if strings.Contains(lower, brand) {
			e.logger.Info("guardrail.input.blocked", "reason", string(ReasonCompetitor), "matched", brand)
			return Verdict{Allowed: false, Reason: ReasonCompetitor, Refusal: RefusalCompetitor, Sanitized: sanitized}
		}
	}

	for _, kw := range e.cfg.OffTopicKeywords {
		if !strings.Contains(lower, kw) {
			continue
		}
		if e.mentionsShopping(lower) {
			break // shopping-adjacent, let it through
		}
		e.logger.Info("guardrail.input.blocked", "reason", string(ReasonOffTopic), "matched", kw)
		return Verdict{Allowed: false, Reason: ReasonOffTopic, Refusal: RefusalOffTopic, Sanitized: sanitized}
	}

	return Verdict{Allowed: true, Sanitized: sanitized}
}

// CheckOutput scrubs a model reply before it reaches the user. Scrubbing is a
// fixed point: applying it to already-scrubbed text changes nothing. If the
// scrubber itself fails the reply is replaced wholesale (maximally redact,
// safety over completeness).
func (e *Engine) CheckOutput(text string, outCtx OutputContext) (result string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("guardrail.output.scrub_failed", "recover", r)
			result = "I'm sorry, I can't share that response. How else can I help you shop?"
		}
	}()

	result = stripPII(text)
	result = e.stripCompetitors(result)
	result = e.stripFabricatedPromos(result)
	result = e.stripUnverifiedStockClaims(result, outCtx)
	return result
}

func (e *Engine) mentionsShopping(lower string) bool {
	for _, w := range e.cfg.ShoppingWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func stripPII(text string) string {
	for _, p := range piiPatterns {
		text = p.ReplaceAllString(text, redactedToken)
	}
	return text
}

func (e *Engine) stripCompetitors(text string) string {
	lower := strings.ToLower(text)
	for _, brand := range e.cfg.CompetitorBrands {
		for {
			idx := strings.Index(lower, brand)
			if idx < 0 {
				break
			}
			text = text[:idx] + competitorToken + text[idx+len(brand):]
			lower = strings.ToLower(text)
		}
	}
	return text
}

// stripFabricatedPromos removes promo codes the model invented. Codes on the
// whitelist survive; everything else is a hallucination by definition since
// the platform issues no ad-hoc codes.
func (e *Engine) stripFabricatedPromos(text string) string {
	return promoPattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := promoPattern.FindStringSubmatch(match)
		if len(sub) == 2 {
			for _, allowed := range e.cfg.PromoWhitelist {
				if strings.EqualFold(sub[1], allowed) {
					return match
				}
			}
		}
		e.logger.Info("guardrail.output.promo_stripped", "match", match)
		return promoToken
	})
}

// stripUnverifiedStockClaims redacts availability language when no tool call
// in the current turn actually returned an in-stock product. This, not the
// model's honesty, is the hallucination backstop for stock claims.
func (e *Engine) stripUnverifiedStockClaims(text string, outCtx OutputContext) string {
	for _, p := range outCtx.Products {
		if p.Stock > 0 {
			return text // corroborated by tool evidence
		}
	}
	if stockPattern.MatchString(text) {
		e.logger.Info("guardrail.output.stock_claim_redacted", "reason", string(ReasonUnverifiedClaim))
	}
	return stockPattern.ReplaceAllString(text, stockToken)
}
