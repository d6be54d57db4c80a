// Package alert resolves who is subscribed to which rules and delivers one
// notification per recipient.
package alert

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/sha1n/repoguard/internal/domain"
	"gopkg.in/yaml.v3"
)

// Wildcard is the rule identifier that subscribes to a whole namespace ("xxe::*").
const Wildcard = "*"

// ErrInvalidTopic is returned for subscription keys that are neither a rule
// name nor a namespace wildcard.
var ErrInvalidTopic = errors.New("invalid subscription topic")

// Subscriptions maps a topic (an exact rule name or "<ns>::*") to recipients.
type Subscriptions map[string][]string

// LoadSubscriptions reads a YAML or JSON subscription file.
func LoadSubscriptions(path string) (Subscriptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subscriptions: %w", err)
	}

	var subs Subscriptions
	if err := yaml.Unmarshal(data, &subs); err != nil {
		return nil, fmt.Errorf("failed to parse subscriptions %s: %w", path, err)
	}
	if subs == nil {
		subs = Subscriptions{}
	}

	if err := subs.Validate(); err != nil {
		return nil, err
	}
	return subs, nil
}

// Validate checks that every topic has the "<ns>::<id>" shape.
func (s Subscriptions) Validate() error {
	for topic := range s {
		ns, id, found := strings.Cut(topic, domain.NamespaceSeparator)
		if !found || ns == "" || id == "" {
			return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
		}
	}
	return nil
}

// Resolve returns the sorted, de-duplicated recipients subscribed to a rule,
// either by its exact name or by the wildcard of its namespace.
func (s Subscriptions) Resolve(ruleName string) []string {
	var recipients []string
	ns := domain.RuleNamespace(ruleName)

	for topic, users := range s {
		if topic == ruleName || (ns != "" && topic == ns+domain.NamespaceSeparator+Wildcard) {
			recipients = append(recipients, users...)
		}
	}

	slices.Sort(recipients)
	return slices.Compact(recipients)
}
