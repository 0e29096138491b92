package pushsvc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mkabenga/presencia/core"
)

// SentMessages collects every message "sent" by the console service; tests
// inspect it.
var (
	SentMessages = make([]core.PushMessage, 0)
	mu           sync.Mutex
)

func ClearSentMessages() {
	mu.Lock()
	SentMessages = SentMessages[:0]
	mu.Unlock()
}

type consoleService struct {
	disableOutput bool
}

var _ core.PushService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config) core.PushService {
	return &consoleService{disableOutput: conf.TestMode}
}

func (svc consoleService) SendMessages(messages ...*core.PushMessage) {
	for _, msg := range messages {
		if !msg.HasRecipients() {
			continue
		}
		if !svc.disableOutput {
			fmt.Printf("push -> [%s]: %s - %s\n", strings.Join(msg.To, ", "), msg.Title, msg.Body)
		}
		mu.Lock()
		SentMessages = append(SentMessages, *msg)
		mu.Unlock()
	}
}
