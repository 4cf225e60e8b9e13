package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("DELTA_TEST_MODE") == "" {
			_ = os.Setenv("DELTA_TEST_MODE", "1")
		}
	})
}
