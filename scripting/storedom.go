package scripting

import (
	"fmt"

	"github.com/wudi/redline/annotation"
)

// AlertFunc receives app.alert messages from scripts. A nil func discards
// them.
type AlertFunc func(message string)

// StoreDOM adapts an annotation store to the OverlayDOM interface. Script
// mutations funnel through the same append API as gestures, so replay order
// and page lifecycle rules hold for scripted annotations too.
type StoreDOM struct {
	store *annotation.Store
	alert AlertFunc
}

// NewStoreDOM wraps store for script access.
func NewStoreDOM(store *annotation.Store, alert AlertFunc) *StoreDOM {
	return &StoreDOM{store: store, alert: alert}
}

// PageCount implements OverlayDOM.
func (d *StoreDOM) PageCount() int { return len(d.store.Pages()) }

// GetPage implements OverlayDOM. The page must be live in the store.
func (d *StoreDOM) GetPage(index int) (PageProxy, error) {
	if !d.store.HasPage(index) {
		return nil, fmt.Errorf("script page %d: %w", index, annotation.ErrNoPage)
	}
	return &storePage{store: d.store, index: index}, nil
}

// Alert implements OverlayDOM.
func (d *StoreDOM) Alert(message string) {
	if d.alert != nil {
		d.alert(message)
	}
}

type storePage struct {
	store *annotation.Store
	index int
}

func (p *storePage) GetIndex() int { return p.index }

func (p *storePage) AddRedaction(x0, y0, x1, y1 float64) error {
	_, err := p.store.Append(p.index, annotation.BlurRegion{X0: x0, Y0: y0, X1: x1, Y1: y1})
	return err
}

func (p *storePage) AddLabel(x, y float64, text string) error {
	_, err := p.store.Append(p.index, annotation.TextLabel{X: x, Y: y, Text: text})
	return err
}

func (p *storePage) AnnotationCount() int { return p.store.Count(p.index) }
