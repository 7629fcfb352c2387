package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"livestream-gateway/internal/platform/metrics"
	"livestream-gateway/internal/transcoder"

	"github.com/google/uuid"
)

// Service implements overlay CRUD on top of a Store.
type Service struct {
	store   Store
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService returns a Service. Metrics may be nil.
func NewService(store Store, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		log:     log,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// parseID canonicalises an overlay id.
func parseID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", ErrInvalidID
	}
	return u.String(), nil
}

// Create validates in and stores a new overlay with defaults applied.
func (s *Service) Create(ctx context.Context, in Input) (Overlay, error) {
	now := s.now()
	o := Overlay{
		ID:        uuid.NewString(),
		Style:     map[string]any{},
		Visible:   defaultVisible,
		ZIndex:    defaultZIndex,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := in.apply(&o, true); err != nil {
		return Overlay{}, err
	}

	if err := s.store.Insert(ctx, o); err != nil {
		return Overlay{}, fmt.Errorf("insert overlay: %w", err)
	}
	s.log.Info("overlay created", slog.String("overlay_id", o.ID), slog.String("type", string(o.Type)))
	if s.metrics != nil {
		s.metrics.AddOverlaysCreated(1)
	}
	return o, nil
}

// List returns overlays matching f, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]Overlay, error) {
	out, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list overlays: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Get returns one overlay.
func (s *Service) Get(ctx context.Context, id string) (Overlay, error) {
	id, err := parseID(id)
	if err != nil {
		return Overlay{}, err
	}
	return s.store.Get(ctx, id)
}

// Update merges in over the stored overlay. Validation runs against the
// merged document, so a partial body only needs to be valid on its own fields.
func (s *Service) Update(ctx context.Context, id string, in Input) (Overlay, error) {
	id, err := parseID(id)
	if err != nil {
		return Overlay{}, err
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return Overlay{}, err
	}
	if err := in.apply(&o, false); err != nil {
		return Overlay{}, err
	}
	o.UpdatedAt = s.now()

	if err := s.store.Replace(ctx, o); err != nil {
		return Overlay{}, err
	}
	s.log.Info("overlay updated", slog.String("overlay_id", o.ID), slog.Bool("core_fields", in.touchesCore()))
	return o, nil
}

// Delete removes one overlay.
func (s *Service) Delete(ctx context.Context, id string) error {
	id, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("overlay deleted", slog.String("overlay_id", id))
	if s.metrics != nil {
		s.metrics.AddOverlaysDeleted(1)
	}
	return nil
}

// DeleteMany removes every listed overlay that exists and returns how many
// were deleted. A single malformed id rejects the whole request.
func (s *Service) DeleteMany(ctx context.Context, ids []string) (int, error) {
	parsed := make([]string, 0, len(ids))
	for _, id := range ids {
		p, err := parseID(id)
		if err != nil {
			return 0, err
		}
		parsed = append(parsed, p)
	}

	n, err := s.store.DeleteMany(ctx, parsed)
	if err != nil {
		return 0, fmt.Errorf("delete overlays: %w", err)
	}
	s.log.Info("overlays deleted", slog.Int("requested", len(ids)), slog.Int("deleted", n))
	if s.metrics != nil {
		s.metrics.AddOverlaysDeleted(n)
	}
	return n, nil
}

// ForStream returns the overlays a player draws on a stream: every visible
// overlay, bottom layer first. Overlays are not scoped to a stream.
func (s *Service) ForStream(ctx context.Context) ([]Overlay, error) {
	out, err := s.store.List(ctx, Filter{VisibleOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list overlays: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ZIndex != out[j].ZIndex {
			return out[i].ZIndex < out[j].ZIndex
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// BurnInOverlays converts the visible overlays into transcoder filter
// input, in drawing order.
func (s *Service) BurnInOverlays(ctx context.Context) ([]transcoder.Overlay, error) {
	overlays, err := s.ForStream(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]transcoder.Overlay, 0, len(overlays))
	for _, o := range overlays {
		out = append(out, toTranscoder(o))
	}
	return out, nil
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func toTranscoder(o Overlay) transcoder.Overlay {
	t := transcoder.Overlay{
		Type:    transcoder.OverlayType(o.Type),
		Content: o.Content,
		X:       o.Position.X,
		Y:       o.Position.Y,
	}
	if o.Type == TypeText {
		t.FontSize = fontSize(o.Style["fontSize"])
		if c, ok := o.Style["color"].(string); ok {
			t.Color = c
		}
		return t
	}
	t.Width = int(math.Round(o.Size.Width))
	t.Height = int(math.Round(o.Size.Height))
	return t
}

// fontSize reads a CSS-style size such as "16px" or a bare number. Zero
// means unset.
func fontSize(v any) int {
	switch v := v.(type) {
	case float64:
		return int(math.Round(v))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "px"), 64)
		if err != nil {
			return 0
		}
		return int(math.Round(f))
	}
	return 0
}
