package json

import (
	"sync"

	"github.com/Velocidex/json"
)

type customEncoder struct {
	sample interface{}
	cb     json.EncoderCallback
}

var (
	mu              sync.Mutex
	custom_encoders []*customEncoder
)

// RegisterCustomEncoder installs an encoder callback for all values
// of the sample's type. Call once from an init() function.
func RegisterCustomEncoder(sample interface{}, cb json.EncoderCallback) {
	mu.Lock()
	defer mu.Unlock()

	custom_encoders = append(custom_encoders, &customEncoder{sample, cb})
}

// NewEncOpts returns encoding options carrying every registered
// custom encoder.
func NewEncOpts() *json.EncOpts {
	mu.Lock()
	defer mu.Unlock()

	opts := json.NewEncOpts()
	for _, encoder := range custom_encoders {
		opts.WithCallback(encoder.sample, encoder.cb)
	}
	return opts
}
