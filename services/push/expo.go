// Package pushsvc delivers mobile push notifications through Expo.
package pushsvc

import (
	"fmt"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"

	"github.com/mkabenga/presencia/core"
)

type expoService struct {
	client *expo.PushClient
	logger core.Logger
}

var _ core.PushService = (*expoService)(nil)

func NewExpoService(conf *core.Config, logger core.Logger) *expoService {
	cfg := &expo.ClientConfig{AccessToken: conf.ExpoAccessToken}
	return &expoService{client: expo.NewPushClient(cfg), logger: logger}
}

func (svc expoService) SendMessages(messages ...*core.PushMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if msg.HasRecipients() {
				svc.send(*msg)
			}
		}()
	}
}

func (svc expoService) send(msg core.PushMessage) {
	tokens := make([]expo.ExponentPushToken, 0, len(msg.To))
	for _, to := range msg.To {
		token, err := expo.NewExponentPushToken(to)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("skipping invalid push token %q: %v", to, err))
			continue
		}
		tokens = append(tokens, token)
	}
	if len(tokens) == 0 {
		return
	}

	data := make(map[string]string, len(msg.Data))
	for k, v := range msg.Data {
		data[k] = v
	}
	resp, err := svc.client.Publish(&expo.PushMessage{
		To:       tokens,
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     data,
		Sound:    "default",
		Priority: expo.DefaultPriority,
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("publishing push notification: %v", err), err)
		return
	}
	if err = resp.ValidateResponse(); err != nil {
		svc.logger.Warn(fmt.Sprintf("push notification rejected: %v", err))
	}
}
