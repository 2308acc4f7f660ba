package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/lagren/fleetwatch/reconciler"
)

const postMessageURL = "https://slack.com/api/chat.postMessage"

// Notifier posts host liveness changes to a Slack channel.
type Notifier struct {
	token     string
	channelID string
	url       string
	client    *http.Client
}

func NewNotifier(token, channelID string) *Notifier {
	return &Notifier{
		token:     token,
		channelID: channelID,
		url:       postMessageURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Run posts a message for every alive/dead change until events is closed
// or ctx is cancelled.
func (n *Notifier) Run(ctx context.Context, events <-chan reconciler.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}

			for _, t := range ev.Transitions {
				text, ok := message(t, ev.Snapshot.LastPoll)
				if !ok {
					continue
				}

				if err := n.PostMessage(ctx, text); err != nil {
					logrus.Warnf("Could not notify Slack about %s: %s", t.Host, err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func message(t reconciler.Transition, at time.Time) (string, bool) {
	when := humanize.Time(at)

	switch {
	case t.From == reconciler.StateAlive && t.To == reconciler.StateDead:
		return fmt.Sprintf(":red_circle: %s went down (%s)", t.Host, when), true
	case t.From == reconciler.StateDead && t.To == reconciler.StateAlive:
		return fmt.Sprintf(":large_green_circle: %s is back up (%s)", t.Host, when), true
	}

	return "", false
}

func (n *Notifier) PostMessage(ctx context.Context, text string) error {
	payload := map[string]interface{}{
		"channel": n.channelID,
		"text":    text,
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.token)

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var reply struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}

	if err := json.Unmarshal(b, &reply); err != nil {
		return fmt.Errorf("unexpected response %d: %s", resp.StatusCode, b)
	}

	if !reply.OK {
		return fmt.Errorf("slack: %s", reply.Error)
	}

	return nil
}
