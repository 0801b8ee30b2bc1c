// Package callback encodes and parses inline keyboard callback data of the
// form "<action>[:<arg>[:<arg>]]".
package callback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Callback actions.
const (
	ActionMenu      = "menu"
	ActionStores    = "stores"
	ActionStore     = "store"
	ActionStoreMenu = "storemenu"
	ActionRecommend = "rec"
	ActionBack      = "back"
	ActionHome      = "home"
)

// Telegram rejects callback data longer than 64 bytes.
const maxDataLength = 64

// ErrMalformed is returned for callback data that does not parse.
var ErrMalformed = errors.New("malformed callback data")

// Data is parsed callback data.
type Data struct {
	Action string
	Args   []int64
}

// Arg returns the i-th argument or 0.
func (d Data) Arg(i int) int64 {
	if i < 0 || i >= len(d.Args) {
		return 0
	}
	return d.Args[i]
}

// String encodes d.
func (d Data) String() string {
	var b strings.Builder
	b.WriteString(d.Action)
	for _, a := range d.Args {
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(a, 10))
	}
	return b.String()
}

// Parse decodes callback data. Every argument must be an integer.
func Parse(raw string) (Data, error) {
	if raw == "" || len(raw) > maxDataLength {
		return Data{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}
	parts := strings.Split(raw, ":")
	d := Data{Action: parts[0]}
	if d.Action == "" {
		return Data{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}
	for _, p := range parts[1:] {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return Data{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
		}
		d.Args = append(d.Args, n)
	}
	return d, nil
}

// Menu opens the menu button with id.
func Menu(id int64) string { return Data{Action: ActionMenu, Args: []int64{id}}.String() }

// Stores lists one page of the stores under a menu button.
func Stores(menuID int64, page int) string {
	return Data{Action: ActionStores, Args: []int64{menuID, int64(page)}}.String()
}

// Store shows a store card.
func Store(id int64) string { return Data{Action: ActionStore, Args: []int64{id}}.String() }

// StoreMenu sends the menu images of a store.
func StoreMenu(id int64) string { return Data{Action: ActionStoreMenu, Args: []int64{id}}.String() }

// Recommend lists one page of recommended stores.
func Recommend(page int) string {
	return Data{Action: ActionRecommend, Args: []int64{int64(page)}}.String()
}

// Back returns to the previous view.
func Back() string { return ActionBack }

// Home returns to the root menu.
func Home() string { return ActionHome }
