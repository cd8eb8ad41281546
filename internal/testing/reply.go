package testing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/chatbot-e2e/internal/transcript"
	"github.com/sirupsen/logrus"
)

// awaitReply performs PromptSent → ReplyReceived. It polls the transcript
// until bot turns appear after the last user turn and their text is the
// same on two consecutive polls, so streamed replies are read complete.
// baseline is the number of turns present before the message was sent.
// The returned latency runs from sentAt to the first sighting of the reply.
func (r *caseRun) awaitReply(ctx context.Context, baseline int, sentAt time.Time) (string, time.Duration, error) {
	var (
		timeout  = r.o.cfg.Browser.ReplyTimeout
		interval = r.o.cfg.Browser.PollInterval
	)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		last      string
		firstSeen time.Time
		polls     int
		readErr   error
	)

	for {
		polls++

		turns, err := r.o.pollExtractor.Extract(waitCtx, r.session)

		switch {
		case err == nil:
			readErr = nil
			r.result.Transcript = turns

			if reply := newReply(turns, baseline); reply != "" {
				if firstSeen.IsZero() {
					firstSeen = time.Now()
				}

				if reply == last {
					return reply, firstSeen.Sub(sentAt), nil
				}

				last = reply
			}
		case errors.Is(err, transcript.ErrElementNotFound), waitCtx.Err() != nil:
			// Not rendered yet, or the wait just expired.
		default:
			// Rows re-rendered mid-read fail transiently. Only a read
			// error still present at the timeout is reported.
			readErr = err
			r.log.WithError(err).WithField("polls", polls).Debug("transcript read failed while waiting for reply")
		}

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return "", 0, err
			}

			if last != "" {
				r.log.WithField("polls", polls).Warn("reply still changing at timeout, using last text")
				return last, firstSeen.Sub(sentAt), nil
			}

			if readErr != nil {
				return "", 0, fmt.Errorf("reading transcript while waiting for reply: %w", readErr)
			}

			r.log.WithFields(logrus.Fields{
				"polls":   polls,
				"timeout": timeout,
			}).Debug("no reply before timeout")

			return "", 0, fmt.Errorf("%w within %s", errReplyTimeout, timeout)
		case <-ticker.C:
		}
	}
}

// newReply returns the text of the bot turns after the message just sent.
// The anchor is the last user turn when the widget renders one past the
// baseline, else the end of the baseline.
func newReply(turns []transcript.ChatTurn, baseline int) string {
	anchor := baseline - 1
	if idx := transcript.LastIndex(turns, transcript.RoleUser); idx > anchor {
		anchor = idx
	}

	return joinReplies(transcript.BotRepliesAfter(turns, anchor))
}
