// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
)

var _ datalake.Notifier = &Notifier{}

// Event is published once for every table a run finishes.
type Event struct {
	RunID string `json:"run_id"`
	datalake.TableStats
	FinishedAt time.Time `json:"finished_at"`
}

// JSONEvent implements the sarama.Encoder interface for Event using json.
type JSONEvent Event

// Encode marshals the event to json.
func (e JSONEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Length returns the length of the marshalled json.
func (e JSONEvent) Length() int {
	bytes, _ := e.Encode()
	return len(bytes)
}

// Notifier is a datalake.Notifier which publishes an Event to a kafka topic,
// keyed by table name.
type Notifier struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

// NewNotifier connects a producer to hosts.
func NewNotifier(hosts []string, topic string) (*Notifier, error) {
	conf := sarama.NewConfig()
	conf.Version = sarama.V0_10_0_0
	conf.Producer.Return.Successes = true
	conf.Producer.RequiredAcks = sarama.WaitForAll
	producer, err := sarama.NewSyncProducer(hosts, conf)
	if err != nil {
		return nil, errors.Wrap(err, "getting new producer")
	}
	return NewNotifierWithProducer(producer, topic), nil
}

// NewNotifierWithProducer gets a Notifier which sends with producer. The
// Notifier closes producer when it is closed.
func NewNotifierWithProducer(producer sarama.SyncProducer, topic string) *Notifier {
	return &Notifier{
		producer: producer,
		topic:    topic,
		now:      time.Now,
	}
}

// Notify implements datalake.Notifier.
func (n *Notifier) Notify(ctx context.Context, runID string, stats datalake.TableStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev := JSONEvent{
		RunID:      runID,
		TableStats: stats,
		FinishedAt: n.now().UTC(),
	}
	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(stats.Table),
		Value: ev,
	}
	_, _, err := n.producer.SendMessage(msg)
	return errors.Wrapf(err, "sending event for %s to %s", stats.Table, n.topic)
}

// Close closes the producer.
func (n *Notifier) Close() error {
	return errors.Wrap(n.producer.Close(), "closing producer")
}
