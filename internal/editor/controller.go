// Package editor drives one collaborative editing session: it applies gestures
// to the local document, broadcasts them, and persists them after a quiet period.
package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"slidesync/internal/debounce"
	"slidesync/internal/deck"
	"slidesync/internal/geometry"
	"slidesync/internal/presentation/model"
	"slidesync/internal/realtime"
	"slidesync/internal/rolegate"
	"slidesync/internal/session"
	"slidesync/pkg/logger"
)

var ErrClosed = errors.New("editor: session closed")

// Store is the REST side of the session.
type Store interface {
	GetPresentation(ctx context.Context, id string) (model.Presentation, error)
	SavePresentation(ctx context.Context, id string, doc model.Presentation) error
	GetRole(ctx context.Context, id string) (model.Role, error)
}

// Sync is the realtime side of the session. Emit calls must not block.
type Sync interface {
	SetHandlers(h realtime.Handlers)
	Connect(ctx context.Context, presentationID, username string) error
	EmitPresentationUpdated(slides []model.Slide) error
	EmitSlideUpdated(slides []model.Slide) error
	EmitTitleUpdated(title string) error
	Close()
}

// Notifier shows transient messages to the user.
type Notifier interface {
	Notify(message string, err error)
}

type NotifierFunc func(message string, err error)

func (f NotifierFunc) Notify(message string, err error) { f(message, err) }

// View is what the host renders.
type View struct {
	Presentation model.Presentation
	Selected     int
	Role         model.Role
	Participants []model.Participant
}

type Renderer interface {
	Render(v View)
}

type RendererFunc func(v View)

func (f RendererFunc) Render(v View) { f(v) }

type Deps struct {
	Store    Store
	Sync     Sync
	Viewport geometry.Viewport
	Notifier Notifier
	Renderer Renderer
}

type Options struct {
	// QuietPeriod is how long edits must pause before the document is saved.
	QuietPeriod time.Duration
	// RequestTimeout bounds each background save.
	RequestTimeout time.Duration
}

type State int

const (
	Loading State = iota
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	default:
		return "loading"
	}
}

type Controller struct {
	sess    session.Session
	deps    Deps
	saver   *debounce.Debouncer
	timeout time.Duration

	mu           sync.Mutex
	state        State
	doc          model.Presentation
	role         model.Role
	participants []model.Participant
	selected     int
}

func New(sess session.Session, deps Deps, opts Options) *Controller {
	if deps.Viewport == nil {
		deps.Viewport = geometry.Fixed(geometry.Nominal)
	}
	if deps.Notifier == nil {
		deps.Notifier = NotifierFunc(func(string, error) {})
	}
	if deps.Renderer == nil {
		deps.Renderer = RendererFunc(func(View) {})
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	return &Controller{
		sess:    sess,
		deps:    deps,
		saver:   debounce.New(opts.QuietPeriod),
		timeout: opts.RequestTimeout,
		role:    model.RoleViewer,
	}
}

// Load fetches the document and the caller's role, then joins the relay. On a
// fetch failure the controller stays Loading and Load may be called again.
// A failed relay connection is reported but the editor still becomes Ready.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	switch state {
	case Closed:
		return ErrClosed
	case Ready:
		return nil
	}

	doc, err := c.deps.Store.GetPresentation(ctx, c.sess.PresentationID)
	if err != nil {
		logger.Sugar.Errorf("Failed to load presentation %s: %v", c.sess.PresentationID, err)
		c.deps.Notifier.Notify("Could not load the presentation", err)
		return err
	}
	role, err := c.deps.Store.GetRole(ctx, c.sess.PresentationID)
	if err != nil {
		logger.Sugar.Errorf("Failed to load role in %s: %v", c.sess.PresentationID, err)
		c.deps.Notifier.Notify("Could not load your role", err)
		return err
	}

	c.mu.Lock()
	if c.state != Loading {
		// closed while the requests were in flight
		c.mu.Unlock()
		return ErrClosed
	}
	doc.Slides = deck.CloneSlides(doc.Slides)
	if doc.ID == "" {
		doc.ID = c.sess.PresentationID
	}
	c.doc = doc
	c.role = model.ParseRole(string(role))
	c.selected = 0
	c.state = Ready
	v := c.viewLocked()
	c.mu.Unlock()
	c.deps.Renderer.Render(v)

	c.deps.Sync.SetHandlers(realtime.Handlers{
		OnParticipants:        c.applyRoster,
		OnPresentationUpdated: c.applyRemoteSlides,
		OnSlideUpdated:        c.applyRemoteSlides,
		OnTitleUpdated:        c.applyRemoteTitle,
		OnClosed: func(err error) {
			c.deps.Notifier.Notify("Lost connection to the live session", err)
		},
	})
	if err := c.deps.Sync.Connect(ctx, c.sess.PresentationID, c.sess.Username); err != nil {
		logger.Sugar.Warnf("Realtime join for %s failed: %v", c.sess.PresentationID, err)
		c.deps.Notifier.Notify("Live updates are unavailable", err)
	}
	return nil
}

// Close stops pending saves and leaves the relay. It is safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return
	}
	c.state = Closed
	c.mu.Unlock()

	c.saver.Stop()
	c.deps.Sync.Close()
}

func (c *Controller) AddSlide() {
	c.apply(rolegate.AddSlide, func(doc model.Presentation) (model.Presentation, error) {
		next := deck.AddSlide(doc)
		c.selected = len(next.Slides) - 1
		return next, nil
	})
}

func (c *Controller) RemoveSlide(index int) {
	c.apply(rolegate.RemoveSlide, func(doc model.Presentation) (model.Presentation, error) {
		return deck.RemoveSlide(doc, index)
	})
}

// ReorderSlides moves a slide; the selection follows it.
func (c *Controller) ReorderSlides(from, to int) {
	c.apply(rolegate.ReorderSlides, func(doc model.Presentation) (model.Presentation, error) {
		next, err := deck.ReorderSlides(doc, from, to)
		if err == nil && c.selected == from {
			c.selected = to
		}
		return next, err
	})
}

// AddTextBlock places an empty block at the default spot for the current viewport.
func (c *Controller) AddTextBlock(slide int) {
	size := c.deps.Viewport.Size()
	c.apply(rolegate.AddBlock, func(doc model.Presentation) (model.Presentation, error) {
		return deck.AddTextBlock(doc, slide, size)
	})
}

func (c *Controller) RemoveTextBlock(slide, block int) {
	c.apply(rolegate.RemoveBlock, func(doc model.Presentation) (model.Presentation, error) {
		return deck.RemoveTextBlock(doc, slide, block)
	})
}

func (c *Controller) EditText(slide, block int, content string) {
	c.apply(rolegate.EditText, func(doc model.Presentation) (model.Presentation, error) {
		return deck.UpdateTextBlockContent(doc, slide, block, content)
	})
}

// MoveTextBlock sets a block position in percent.
func (c *Controller) MoveTextBlock(slide, block int, x, y float64) {
	c.apply(rolegate.MoveBlock, func(doc model.Presentation) (model.Presentation, error) {
		return deck.MoveTextBlock(doc, slide, block, x, y)
	})
}

// DragTextBlock handles a drag that ended at pixel position (px, py).
func (c *Controller) DragTextBlock(slide, block int, px, py float64) {
	x, y := geometry.Position(px, py, c.deps.Viewport.Size())
	c.MoveTextBlock(slide, block, x, y)
}

// ResizeTextBlock sets position and size in percent.
func (c *Controller) ResizeTextBlock(slide, block int, x, y, width, height float64) {
	c.apply(rolegate.ResizeBlock, func(doc model.Presentation) (model.Presentation, error) {
		return deck.ResizeTextBlock(doc, slide, block, x, y, width, height)
	})
}

// ResizeTextBlockPixels handles a resize handle reporting a pixel rectangle.
func (c *Controller) ResizeTextBlockPixels(slide, block int, r geometry.PixelRect) {
	p := geometry.ToPlacement(r, c.deps.Viewport.Size())
	c.ResizeTextBlock(slide, block, p.X, p.Y, p.Width, p.Height)
}

func (c *Controller) ChangeTitle(title string) {
	c.apply(rolegate.EditTitle, func(doc model.Presentation) (model.Presentation, error) {
		return deck.SetTitle(doc, title), nil
	})
}

// SelectSlide changes the slide shown in the editor. Out-of-range indexes are ignored.
func (c *Controller) SelectSlide(index int) {
	c.mu.Lock()
	if c.state != Ready || index < 0 || index >= len(c.doc.Slides) || index == c.selected {
		c.mu.Unlock()
		return
	}
	c.selected = index
	v := c.viewLocked()
	c.mu.Unlock()
	c.deps.Renderer.Render(v)
}

// apply runs one gesture. mutate is called with the lock held.
func (c *Controller) apply(op rolegate.Operation, mutate func(model.Presentation) (model.Presentation, error)) {
	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		return
	}
	if !rolegate.CanMutate(c.role, op) {
		logger.Sugar.Debugf("Ignoring %s: role %s may not perform it", op, c.role)
		c.mu.Unlock()
		return
	}

	prevSelected := c.selected
	next, err := mutate(c.doc)
	if err != nil {
		c.selected = prevSelected
		logger.Sugar.Debugf("Ignoring %s: %v", op, err)
		c.mu.Unlock()
		return
	}
	c.doc = deck.Renumber(next)
	c.clampSelectedLocked()
	v := c.viewLocked()
	c.emitLocked(op)
	c.mu.Unlock()

	c.deps.Renderer.Render(v)
	c.saver.Schedule(c.save)
}

func (c *Controller) emitLocked(op rolegate.Operation) {
	var err error
	switch {
	case op == rolegate.EditTitle:
		err = c.deps.Sync.EmitTitleUpdated(c.doc.Title)
	case op.Structural():
		err = c.deps.Sync.EmitPresentationUpdated(deck.CloneSlides(c.doc.Slides))
	default:
		err = c.deps.Sync.EmitSlideUpdated(deck.CloneSlides(c.doc.Slides))
	}
	if err != nil {
		// The save still carries the change to the server.
		logger.Sugar.Warnf("Broadcast of %s failed: %v", op, err)
	}
}

func (c *Controller) save() {
	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		return
	}
	doc := deck.Clone(c.doc)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.deps.Store.SavePresentation(ctx, c.sess.PresentationID, doc); err != nil {
		logger.Sugar.Errorf("Failed to save presentation %s: %v", c.sess.PresentationID, err)
		c.deps.Notifier.Notify("Your changes could not be saved", err)
		return
	}
	logger.Sugar.Debugf("Saved presentation %s", c.sess.PresentationID)
}

// Remote events replace local state wholesale; the last broadcast wins.

func (c *Controller) applyRemoteSlides(slides []model.Slide) {
	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		return
	}
	c.doc.Slides = deck.CloneSlides(slides)
	c.clampSelectedLocked()
	v := c.viewLocked()
	c.mu.Unlock()
	c.deps.Renderer.Render(v)
}

func (c *Controller) applyRemoteTitle(title string) {
	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		return
	}
	c.doc.Title = title
	v := c.viewLocked()
	c.mu.Unlock()
	c.deps.Renderer.Render(v)
}

func (c *Controller) applyRoster(roster []model.Participant) {
	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		return
	}
	c.participants = append([]model.Participant(nil), roster...)
	for _, p := range roster {
		if p.UserID == c.sess.UserID && p.Role != c.role {
			logger.Sugar.Infof("Role in %s changed from %s to %s", c.sess.PresentationID, c.role, p.Role)
			c.role = model.ParseRole(string(p.Role))
		}
	}
	v := c.viewLocked()
	c.mu.Unlock()
	c.deps.Renderer.Render(v)
}

func (c *Controller) clampSelectedLocked() {
	if c.selected >= len(c.doc.Slides) {
		c.selected = len(c.doc.Slides) - 1
	}
	if c.selected < 0 {
		c.selected = 0
	}
}

func (c *Controller) viewLocked() View {
	return View{
		Presentation: deck.Clone(c.doc),
		Selected:     c.selected,
		Role:         c.role,
		Participants: append([]model.Participant(nil), c.participants...),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a deep copy of the current document.
func (c *Controller) Snapshot() model.Presentation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return deck.Clone(c.doc)
}

func (c *Controller) Role() model.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

func (c *Controller) Participants() []model.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Participant(nil), c.participants...)
}

func (c *Controller) Selected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Flush saves a pending edit immediately.
func (c *Controller) Flush() {
	c.saver.Flush()
}

// SavePending reports whether an edit is waiting to be saved.
func (c *Controller) SavePending() bool {
	return c.saver.Pending()
}
