package walking_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestWalking(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Walking Suite")
}
