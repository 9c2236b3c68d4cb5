package delivery

import (
	"testing"

	"replyforce_backend/platform/logger"
)

func TestDispatchCoversAllChannelTypes(t *testing.T) {
	s := New(nil, nil, nil, "1234567890", logger.New("development"))

	for _, typ := range []string{"FACEBOOK", "INSTAGRAM", "WHATSAPP", "TWITTER"} {
		if _, ok := s.senders[typ]; !ok {
			t.Fatalf("no sender registered for %s", typ)
		}
		if _, ok := s.limiters[typ]; !ok {
			t.Fatalf("no rate limiter registered for %s", typ)
		}
	}
}

func TestFacebookAndInstagramShareMetaSender(t *testing.T) {
	s := New(nil, nil, nil, "1234567890", logger.New("development"))

	if s.senders["FACEBOOK"] != s.senders["INSTAGRAM"] {
		t.Fatal("Facebook and Instagram use the same Graph send API client")
	}
}
