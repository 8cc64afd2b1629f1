// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

package scopes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValid(t *testing.T) {
	t.Parallel()

	for _, name := range Names() {
		assert.True(t, Valid(name), name)
	}
	assert.False(t, Valid("admin"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("OPENID"))
}

func TestInvalid(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Invalid([]string{"openid", "email"}))
	assert.Equal(t, []string{"bogus", "nope"}, Invalid([]string{"openid", "bogus", "nope"}))
}

func TestFilter(t *testing.T) {
	t.Parallel()

	out := Filter([]string{"email", "openid", "bogus"})
	// Catalog order, unknown names dropped.
	assert.Len(t, out, 2)
	assert.Equal(t, "openid", out[0].Name)
	assert.Equal(t, "email", out[1].Name)
}

func TestSplitJoin(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Split(""))
	assert.Nil(t, Split("   "))
	assert.Equal(t, []string{"openid", "email"}, Split("  openid   email "))
	assert.Equal(t, "openid email", Join([]string{"openid", "email"}))
	assert.Equal(t, "", Join(nil))
}

func TestContains(t *testing.T) {
	t.Parallel()

	assert.True(t, Contains([]string{"openid", "email"}, "email"))
	assert.False(t, Contains([]string{"openid"}, "email"))
	assert.False(t, Contains(nil, "email"))
}
