package push_test

import (
	"errors"
	"testing"

	"AwesomeShop/internal/push"
)

func TestParsePayload_Defaults(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want push.Payload
	}{
		{
			name: "empty message",
			in:   "",
			want: push.Payload{
				Title: push.DefaultTitle,
				Body:  push.DefaultBody,
				Icon:  push.DefaultIcon,
				Badge: push.DefaultBadge,
				URL:   push.DefaultURL,
			},
		},
		{
			name: "title and url only",
			in:   `{"title":"Sale","url":"/x"}`,
			want: push.Payload{
				Title: "Sale",
				Body:  "You have a new update from AwesomeShop!",
				Icon:  push.DefaultIcon,
				Badge: push.DefaultBadge,
				URL:   "/x",
			},
		},
		{
			name: "empty strings take defaults",
			in:   `{"title":"","body":"  ","icon":""}`,
			want: push.Payload{
				Title: push.DefaultTitle,
				Body:  push.DefaultBody,
				Icon:  push.DefaultIcon,
				Badge: push.DefaultBadge,
				URL:   push.DefaultURL,
			},
		},
		{
			name: "markup is stripped",
			in:   `{"title":"<b>Flash</b> Sale & more","body":"<script>x()</script>20% off"}`,
			want: push.Payload{
				Title: "Flash Sale & more",
				Body:  "20% off",
				Icon:  push.DefaultIcon,
				Badge: push.DefaultBadge,
				URL:   push.DefaultURL,
			},
		},
		{
			name: "tag-like text is removed, escaped brackets survive",
			in:   `{"title":"Use code <SAVE10> at checkout","body":"Use code &lt;SAVE10&gt; at checkout"}`,
			want: push.Payload{
				Title: "Use code at checkout",
				Body:  "Use code <SAVE10> at checkout",
				Icon:  push.DefaultIcon,
				Badge: push.DefaultBadge,
				URL:   push.DefaultURL,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := push.ParsePayload([]byte(tt.in))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v\nwant %+v", got, tt.want)
			}
		})
	}
}

func TestParsePayload_Rejects(t *testing.T) {
	for _, in := range []string{
		`{"title":`,
		`["not","an","object"]`,
		`{"url":"javascript:alert(1)"}`,
	} {
		if _, err := push.ParsePayload([]byte(in)); !errors.Is(err, push.ErrInvalidPayload) {
			t.Fatalf("%s: err=%v", in, err)
		}
	}
}
