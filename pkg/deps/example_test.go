package deps_test

import (
	"fmt"

	"github.com/matzehuels/refgraph/pkg/deps"
)

func ExampleUpdateSettings_WithDefaults() {
	s := deps.UpdateSettings{BatchSize: 8}.WithDefaults()

	fmt.Println("BatchSize:", s.BatchSize)
	fmt.Println("CleanupInterval:", s.CleanupInterval)
	// Output:
	// BatchSize: 8
	// CleanupInterval: 200
}

func ExampleNeedsDiscovery() {
	stored := map[string]int64{"object-reference": 42}

	fmt.Println(deps.NeedsDiscovery(stored, true, "object-reference", 42))
	fmt.Println(deps.NeedsDiscovery(stored, true, "object-reference", 43))
	fmt.Println(deps.NeedsDiscovery(stored, true, "derived-from", 42))
	// Output:
	// false
	// true
	// true
}
