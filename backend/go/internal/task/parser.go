package task

import (
	"strconv"
	"time"
	"unicode/utf8"

	"TaskAgent/backend/go/internal/models"
	"TaskAgent/backend/go/pkg/ratelimiter"
)

// ValidatedTask is a descriptor that passed every check. It is never
// mutated after Parse returns it.
type ValidatedTask struct {
	ID        string
	SourceID  string
	Kind      Kind
	Payload   map[string]models.Value
	Args      Args
	CreatedAt time.Time
	Origin    models.TaskOrigin
}

// Parser turns untrusted descriptors into validated tasks.
type Parser struct {
	limits  Limits
	limiter ratelimiter.KeyedLimiter
}

// NewParser creates a Parser. A nil limiter admits everything.
func NewParser(limits Limits, limiter ratelimiter.KeyedLimiter) *Parser {
	if limiter == nil {
		limiter = ratelimiter.Unlimited{}
	}
	return &Parser{limits: limits.withDefaults(), limiter: limiter}
}

// Parse validates raw on behalf of expectedSourceID. Checks run in a fixed
// order: identity fields, source, kind, rate limit, then payload shape. The
// rate limiter is consulted only once the kind is known to be supported.
func (p *Parser) Parse(raw models.TaskDescriptor, expectedSourceID string) (*ValidatedTask, error) {
	if raw.ID == "" {
		return nil, missingField("id")
	}
	if utf8.RuneCountInString(raw.ID) > p.limits.MaxIDLength {
		return nil, invalidField("", "id", "too long")
	}
	if raw.SourceID == "" {
		return nil, missingField("source_id")
	}
	if raw.SourceID != expectedSourceID {
		return nil, &Error{Code: models.ErrSourceMismatch, Field: "source_id", Reason: "descriptor belongs to another source"}
	}

	kind, defaults, legacy, err := p.resolve(raw)
	if err != nil {
		return nil, err
	}

	if !p.limiter.Allow(raw.SourceID, string(kind)) {
		return nil, &Error{Code: models.ErrRateLimited, Kind: kind, Reason: "too many tasks of this kind"}
	}

	payload, err := p.limits.NormalizePayload(kind, raw.Payload)
	if err != nil {
		return nil, err
	}
	for k, v := range defaults {
		if _, ok := payload[k]; !ok {
			payload[k] = v
		}
	}
	// Arguments parsed from a legacy command take precedence over the payload.
	for k, v := range legacy {
		payload[k] = p.limits.normalize(v, 1)
	}

	args, err := validators[kind](payload)
	if err != nil {
		return nil, err
	}

	origin := raw.Origin
	if origin == "" {
		origin = models.OriginSync
	}
	return &ValidatedTask{
		ID:        raw.ID,
		SourceID:  raw.SourceID,
		Kind:      kind,
		Payload:   payload,
		Args:      args,
		CreatedAt: raw.CreatedAt,
		Origin:    origin,
	}, nil
}

func (p *Parser) resolve(raw models.TaskDescriptor) (Kind, map[string]models.Value, map[string]models.Value, error) {
	if normalizeAction(raw.Action) != "" {
		a, ok := resolveAlias(raw.Action)
		if !ok {
			return "", nil, nil, &Error{Code: models.ErrUnknownKind, Field: "action", Reason: "unsupported action " + quoteAction(raw.Action)}
		}
		return a.kind, a.defaults, nil, nil
	}
	if kind, args, ok := parseLegacy(raw.Command); ok {
		return kind, nil, args, nil
	}
	return "", nil, nil, missingField("action")
}

func quoteAction(action string) string {
	const max = 64
	runes := []rune(action)
	if len(runes) > max {
		return strconv.Quote(string(runes[:max]) + "...")
	}
	return strconv.Quote(action)
}
