package cloudfront

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// DetectEventKind tells the runtime of an event from its shape: Lambda@Edge
// events carry their request in Records[0].cf, CloudFront Functions events
// at the top level.
func DetectEventKind(data []byte) (EventKind, error) {
	if !gjson.ValidBytes(data) {
		return 0, fmt.Errorf("%w: not a JSON document", ErrInvalidEvent)
	}

	doc := gjson.ParseBytes(data)
	switch {
	case doc.Get("Records.0.cf").Exists():
		return LambdaEventKind, nil
	case doc.Get("request").IsObject():
		return FunctionEventKind, nil
	default:
		return 0, fmt.Errorf("%w: unknown event shape", ErrInvalidEvent)
	}
}
