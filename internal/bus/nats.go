// Package bus carries video-retrieval requests between the API process and
// the worker over NATS. Review operations publish and return immediately;
// the worker owns the actual extraction.
package bus

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
)

const SubjectRetrievalRequested = "video.retrieval.requested"

// RetrievalRequest is the wire event. The worker re-reads the alarm by guid
// before launching, so the event carries no alarm fields that could go stale.
type RetrievalRequest struct {
	GUID   string `json:"guid"`
	Reason string `json:"reason"`
}

type Publisher struct {
	Conn *nats.Conn
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Publisher{Conn: conn}, nil
}

func (p *Publisher) Close() {
	if p.Conn != nil {
		p.Conn.Drain()
		p.Conn.Close()
	}
}

// RequestRetrieval satisfies the review service's dispatcher port.
func (p *Publisher) RequestRetrieval(guid, reason string) error {
	data, err := json.Marshal(RetrievalRequest{GUID: guid, Reason: reason})
	if err != nil {
		return err
	}
	return p.Conn.Publish(SubjectRetrievalRequested, data)
}

type Subscriber struct {
	Conn *nats.Conn
}

func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{Conn: conn}, nil
}

func (s *Subscriber) Close() {
	if s.Conn != nil {
		s.Conn.Drain()
		s.Conn.Close()
	}
}

func (s *Subscriber) Subscribe(handler func(RetrievalRequest)) (*nats.Subscription, error) {
	return s.Conn.Subscribe(SubjectRetrievalRequested, func(msg *nats.Msg) {
		var req RetrievalRequest
		_ = json.Unmarshal(msg.Data, &req)
		handler(req)
	})
}
