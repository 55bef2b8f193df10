package texts

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Topics is the fixed catalog a voting round draws its options from.
var Topics = []string{
	"technology",
	"nature",
	"history",
	"space",
	"food",
	"sports",
	"music",
	"ocean",
}

// Provider generates race text. An empty topic means random prose. A
// provider may be remote and slow; callers wrap it with GenerateWithFallback.
type Provider interface {
	Generate(ctx context.Context, topic string, approxLength int) (string, error)
}

var commonWords = []string{
	"the", "quick", "people", "world", "light", "morning", "window",
	"always", "because", "thought", "before", "little", "house", "water",
	"between", "another", "moment", "something", "nothing", "together",
	"around", "through", "question", "answer", "change", "simple",
	"story", "paper", "early", "street", "letter", "number", "different",
	"important", "example", "machine", "quiet", "garden", "winter",
	"summer", "return", "follow", "remember", "believe", "understand",
}

var topicWords = map[string][]string{
	"technology": {"computer", "network", "program", "keyboard", "signal",
		"circuit", "software", "machine", "digital", "server", "storage",
		"protocol", "message", "screen", "device", "battery", "sensor"},
	"nature": {"forest", "river", "mountain", "meadow", "sunlight",
		"branch", "valley", "thunder", "blossom", "stream", "shadow",
		"breeze", "granite", "willow", "clover", "horizon", "autumn"},
	"history": {"empire", "ancient", "castle", "village", "merchant",
		"harbor", "treaty", "kingdom", "scholar", "archive", "dynasty",
		"legion", "voyage", "frontier", "monument", "chronicle"},
	"space": {"planet", "galaxy", "orbit", "rocket", "nebula", "gravity",
		"station", "comet", "lunar", "stellar", "horizon", "telescope",
		"asteroid", "mission", "capsule", "eclipse", "vacuum"},
	"food": {"kitchen", "recipe", "flavor", "garlic", "pepper", "butter",
		"harvest", "orchard", "bakery", "spices", "simmer", "saffron",
		"noodle", "citrus", "roasted", "honey", "vinegar"},
	"sports": {"stadium", "whistle", "sprint", "record", "referee",
		"season", "trophy", "tackle", "defense", "striker", "marathon",
		"paddle", "javelin", "relay", "podium", "fixture"},
	"music": {"melody", "rhythm", "guitar", "chorus", "tempo", "string",
		"concert", "harmony", "ballad", "cadence", "octave", "verse",
		"ensemble", "acoustic", "refrain", "sonata"},
	"ocean": {"current", "seabed", "coral", "harbor", "voyage", "anchor",
		"sailor", "lagoon", "tidal", "trench", "whale", "drift",
		"breaker", "compass", "island", "saline"},
}

// Generator builds race text locally from the word banks. It is the
// synchronous fallback behind any remote provider and the default
// provider when none is configured.
type Generator struct {
	rng *rand.Rand
	mu  sync.Mutex
}

func NewGenerator() *Generator {
	return &Generator{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewGeneratorWithSeed pins the random source for deterministic tests.
func NewGeneratorWithSeed(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Random produces plain prose of approximately approxLength characters.
func (g *Generator) Random(approxLength int) string {
	return g.build(commonWords, approxLength)
}

// ForTopic produces prose biased toward the topic's word bank.
func (g *Generator) ForTopic(topic string, approxLength int) (string, error) {
	words, ok := topicWords[topic]
	if !ok || len(words) == 0 {
		return "", fmt.Errorf("unknown topic %q", topic)
	}
	return g.build(words, approxLength), nil
}

// VoteOptions picks n distinct topics uniformly at random from the
// catalog.
func (g *Generator) VoteOptions(n int) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n > len(Topics) {
		n = len(Topics)
	}
	perm := g.rng.Perm(len(Topics))
	options := make([]string, 0, n)
	for _, i := range perm[:n] {
		options = append(options, Topics[i])
	}
	return options
}

// Generate implements Provider. The local generator cannot time out, so
// the context is only checked up front.
func (g *Generator) Generate(ctx context.Context, topic string, approxLength int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if topic == "" {
		return g.Random(approxLength), nil
	}
	return g.ForTopic(topic, approxLength)
}

func (g *Generator) build(words []string, approxLength int) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if approxLength < 20 {
		approxLength = 20
	}

	var b strings.Builder
	sentenceLen := 0
	startSentence := true
	var last string

	for b.Len() < approxLength {
		word := words[g.rng.Intn(len(words))]
		if word == last {
			continue
		}
		last = word

		if startSentence {
			b.WriteString(strings.ToUpper(word[:1]))
			b.WriteString(word[1:])
			startSentence = false
		} else {
			b.WriteByte(' ')
			b.WriteString(word)
		}

		sentenceLen++
		if sentenceLen >= 6+g.rng.Intn(6) {
			b.WriteByte('.')
			sentenceLen = 0
			startSentence = true
			if b.Len() < approxLength {
				b.WriteByte(' ')
			}
		}
	}

	text := strings.TrimSpace(b.String())
	if !strings.HasSuffix(text, ".") {
		text += "."
	}
	return text
}

// GenerateWithFallback calls the provider under a deadline and degrades
// to local random prose if it errors or times out. It never fails.
func GenerateWithFallback(provider Provider, fallback *Generator, topic string, approxLength int, timeout time.Duration) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	text, err := provider.Generate(ctx, topic, approxLength)
	if err != nil || text == "" {
		return fallback.Random(approxLength), false
	}
	return text, true
}
