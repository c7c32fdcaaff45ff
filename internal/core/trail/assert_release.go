//go:build !crumbdebug

package trail

const debugAssertions = false
