// Package acceptance exercises the Task Board and reconcile flow end to end
// through their public APIs, the way spec §8's scenarios describe, without
// reaching into any package internals.
package acceptance

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestAcceptance(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Acceptance Suite")
}
