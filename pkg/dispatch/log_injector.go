package dispatch

import "github.com/rs/zerolog"

// LogInjector logs actions instead of performing them
type LogInjector struct {
	Log zerolog.Logger
}

func (l LogInjector) Press(key string) error {
	l.Log.Info().Str("key", key).Msg("press")
	return nil
}

func (l LogInjector) Hotkey(keys ...string) error {
	l.Log.Info().Strs("keys", keys).Msg("hotkey")
	return nil
}

func (l LogInjector) MoveRel(dx, dy int) error {
	l.Log.Debug().Int("dx", dx).Int("dy", dy).Msg("move")
	return nil
}

func (l LogInjector) Click(button string) error {
	l.Log.Info().Str("button", button).Msg("click")
	return nil
}

func (l LogInjector) Scroll(amount int) error {
	l.Log.Debug().Int("amount", amount).Msg("scroll")
	return nil
}

func (l LogInjector) HScroll(amount int) error {
	l.Log.Debug().Int("amount", amount).Msg("hscroll")
	return nil
}
