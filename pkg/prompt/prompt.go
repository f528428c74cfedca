// Package prompt builds synthetic prompts of a requested length.
//
// Tokenizers differ, so length is expressed in whitespace-delimited words and
// one word is taken to be roughly one token.
package prompt

import (
	"math/rand"
	"strings"
	"time"
)

// DefaultBlockSize is the number of words drawn at random before repetition starts.
const DefaultBlockSize = 100

// DefaultVocabulary is the word list prompts are drawn from.
var DefaultVocabulary = []string{
	"apple", "banana", "cherry", "date", "elderberry", "fig", "grape", "honeydew",
	"kiwi", "lemon", "mango", "nectarine", "orange", "papaya", "quince", "raspberry",
	"strawberry", "tangerine", "ugli", "vanilla", "watermelon", "xigua", "yam", "zucchini",
	"run", "jump", "walk", "sleep", "eat", "drink", "think", "code", "debug", "deploy",
	"fast", "slow", "hard", "easy", "complex", "simple", "red", "green", "blue", "yellow",
}

// Prompt is an immutable prompt text with its approximate token count.
type Prompt struct {
	Text  string
	Words int
}

// Generator produces prompts from a fixed vocabulary.
type Generator struct {
	vocabulary []string
	blockSize  int
	rand       *rand.Rand
}

// NewGenerator returns a Generator over DefaultVocabulary.
//
// A nil source seeds one from the current time.
func NewGenerator(source rand.Source) *Generator {
	if source == nil {
		source = rand.NewSource(time.Now().UnixNano())
	}
	return &Generator{
		vocabulary: DefaultVocabulary,
		blockSize:  DefaultBlockSize,
		rand:       rand.New(source),
	}
}

// Generate returns a prompt of exactly targetWords words.
//
// A block of random words is drawn once and repeated whole as many times as it
// fits, then the remainder is filled with fresh random words. A non-positive
// target yields an empty prompt.
func (g *Generator) Generate(targetWords int) Prompt {
	if targetWords <= 0 {
		return Prompt{}
	}

	block := g.draw(g.blockSize)
	repeats, remainder := targetWords/g.blockSize, targetWords%g.blockSize

	words := make([]string, 0, targetWords)
	for range repeats {
		words = append(words, block...)
	}
	words = append(words, g.draw(remainder)...)

	return Prompt{Text: strings.Join(words, " "), Words: len(words)}
}

// draw picks n words at random, with replacement.
func (g *Generator) draw(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = g.vocabulary[g.rand.Intn(len(g.vocabulary))]
	}
	return words
}
