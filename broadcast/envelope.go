package broadcast

import (
	"errors"

	"github.com/bytedance/sonic"

	"github.com/lokeshjavvadi/Smart-taskhub-React/domain"
)

// Envelope addresses an encoded task event to a project channel when it
// leaves the process.
type Envelope struct {
	ProjectID string                 `json:"projectId"`
	Event     sonic.NoCopyRawMessage `json:"event"`
}

var errEmptyEnvelope = errors.New("envelope without project or event")

func encodeEnvelope(projectID string, ev domain.TaskEvent) (payload, envelope []byte, err error) {
	payload, err = domain.EncodeTaskEvent(ev)
	if err != nil {
		return nil, nil, err
	}
	envelope, err = sonic.Marshal(Envelope{ProjectID: projectID, Event: payload})
	if err != nil {
		return nil, nil, err
	}
	return payload, envelope, nil
}

// DecodeEnvelope parses an envelope produced by RedisRelay or QueueForwarder.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if env.ProjectID == "" || len(env.Event) == 0 {
		return Envelope{}, errEmptyEnvelope
	}
	return env, nil
}
