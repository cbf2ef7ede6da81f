package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/v0xg/pagepilot/internal/action"
	"github.com/v0xg/pagepilot/internal/crawler"
)

// ErrUnknownElement is returned when an action names an element id that the
// observation it was parsed against does not hold.
var ErrUnknownElement = errors.New("unknown element")

// ErrNotEditable is returned when Type targets a disabled or read-only field.
var ErrNotEditable = errors.New("element is disabled or read-only")

// Executor applies actions to the browser's current page
type Executor struct {
	browser *crawler.Browser
	logger  *zap.Logger
}

// New creates an Executor driving browser
func New(browser *crawler.Browser, logger *zap.Logger) *Executor {
	return &Executor{browser: browser, logger: logger.Named("executor")}
}

// Execute performs a single action. Element ids are resolved against obs,
// which must be the observation the action was parsed with.
func (e *Executor) Execute(ctx context.Context, a action.Action, obs *crawler.Observation) error {
	e.logger.Debug("Executing action", zap.Stringer("action", a))

	switch a := a.(type) {
	case action.Click:
		return e.click(ctx, a, obs)
	case action.Type:
		return e.typeText(ctx, a, obs)
	case action.Hover:
		return e.hover(ctx, a, obs)
	case action.Scroll:
		_, err := e.page(ctx).Eval(`(up) => window.scrollBy(0, up ? -window.innerHeight : window.innerHeight)`, a.Direction == action.Up)
		return err
	case action.GoBack:
		return e.navigate(ctx, func(p *rod.Page) error { return p.NavigateBack() })
	case action.GoForward:
		return e.navigate(ctx, func(p *rod.Page) error { return p.NavigateForward() })
	case action.Refresh:
		return e.navigate(ctx, func(p *rod.Page) error { return p.Reload() })
	case action.GoTo:
		return e.navigate(ctx, func(p *rod.Page) error { return p.Navigate(a.URL) })
	case action.SwitchTab:
		return e.browser.SwitchTab(ctx, a.TabIndex)
	case action.CloseTab:
		return e.browser.CloseTab(ctx)
	case action.NewTab:
		return e.browser.NewTab(ctx)
	case action.Done:
		return nil
	default:
		return fmt.Errorf("unsupported action %T", a)
	}
}

func (e *Executor) page(ctx context.Context) *rod.Page {
	return e.browser.Page().Context(ctx)
}

// bound limits one element operation. rod's actionability waits retry until
// their context ends.
func (e *Executor) bound(ctx context.Context, el *rod.Element) (*rod.Element, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, e.browser.ActionTimeout())
	return el.Context(ctx), cancel
}

func (e *Executor) hover(ctx context.Context, a action.Hover, obs *crawler.Observation) error {
	el, err := element(obs, a.ElementID)
	if err != nil {
		return err
	}
	el, cancel := e.bound(ctx, el)
	defer cancel()

	if err := el.Hover(); err != nil {
		return fmt.Errorf("hover element %d: %w", a.ElementID, err)
	}
	return nil
}

// click scrolls the element into view and clicks its center without waiting
// for actionability.
func (e *Executor) click(ctx context.Context, a action.Click, obs *crawler.Observation) error {
	el, err := element(obs, a.ElementID)
	if err != nil {
		return err
	}
	el, cancel := e.bound(ctx, el)
	defer cancel()

	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll element %d into view: %w", a.ElementID, err)
	}
	x, y, err := getElementCenter(el)
	if err != nil {
		return fmt.Errorf("locate element %d: %w", a.ElementID, err)
	}

	mouse := e.page(ctx).Mouse
	if err := mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return err
	}
	if err := mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}

	// A click may start a navigation; a page that never settles is not a failed click.
	if err := e.browser.Settle(ctx); err != nil {
		e.logger.Debug("page did not settle after click", zap.Int("element", a.ElementID), zap.Error(err))
	}
	return nil
}

// typeText replaces the element's whole value with the action's text.
func (e *Executor) typeText(ctx context.Context, a action.Type, obs *crawler.Observation) error {
	el, err := element(obs, a.ElementID)
	if err != nil {
		return err
	}
	el, cancel := e.bound(ctx, el)
	defer cancel()

	editable, err := el.Eval(`() => !this.disabled && !this.readOnly`)
	if err != nil {
		return fmt.Errorf("inspect element %d: %w", a.ElementID, err)
	}
	if !editable.Value.Bool() {
		return fmt.Errorf("%w: %d", ErrNotEditable, a.ElementID)
	}

	if err := el.Focus(); err != nil {
		return fmt.Errorf("focus element %d: %w", a.ElementID, err)
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("select text in element %d: %w", a.ElementID, err)
	}
	if a.Text == "" {
		return e.page(ctx).Keyboard.Type(input.Backspace)
	}
	if err := el.Input(a.Text); err != nil {
		return fmt.Errorf("type into element %d: %w", a.ElementID, err)
	}
	return nil
}

func (e *Executor) navigate(ctx context.Context, do func(*rod.Page) error) error {
	page := e.page(ctx)
	if err := do(page); err != nil {
		return err
	}
	return e.browser.Settle(ctx)
}

func element(obs *crawler.Observation, id int) (*rod.Element, error) {
	el, ok := obs.Handle(id)
	if !ok || el == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownElement, id)
	}
	return el, nil
}

func getElementCenter(el *rod.Element) (float64, float64, error) {
	shape, err := el.Shape()
	if err != nil {
		return 0, 0, err
	}
	if len(shape.Quads) == 0 {
		return 0, 0, fmt.Errorf("element has no shape")
	}

	quad := shape.Quads[0]
	x := (quad[0] + quad[2] + quad[4] + quad[6]) / 4
	y := (quad[1] + quad[3] + quad[5] + quad[7]) / 4
	return x, y, nil
}
