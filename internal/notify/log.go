package notify

import (
	"context"
	"log"
)

// LogNotifier writes notifications to a standard logger.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier uses the standard logger when logger is nil.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) {
	if n.Cause != "" {
		l.logger.Printf("notify [%s] session=%s product=%d: %s (%s)", n.Op, n.SessionID, n.ProductID, n.Message, n.Cause)
		return
	}
	l.logger.Printf("notify [%s] session=%s product=%d: %s", n.Op, n.SessionID, n.ProductID, n.Message)
}
