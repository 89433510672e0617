// Copyright 2025 Blockscout

package apiserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPage_Clamp(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Page{}.Clamp(), "unset size takes the default")
	assert.Equal(t, DefaultPageSize, Page{PageSize: -5}.Clamp())
	assert.Equal(t, 20, Page{PageSize: 20}.Clamp())
	assert.Equal(t, MaxPageSize, Page{PageSize: 5000}.Clamp(), "oversized requests are capped")
}
