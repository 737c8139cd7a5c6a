package log

import "github.com/sirupsen/logrus"

// silentFormatter does nothing. Logrus formats every entry even when the
// output is io.Discard, so this prevents wasted formatting work; the real
// formatting happens inside the hook.
type silentFormatter struct{}

func (f *silentFormatter) Format(_ *logrus.Entry) ([]byte, error) {
	return nil, nil
}
