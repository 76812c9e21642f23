package main

import "strings"

// stringSlice collects a repeatable flag in order.
type stringSlice []string

func (s *stringSlice) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, " ")
}

func (s *stringSlice) Set(v string) error {
	*s = append(*s, strings.TrimSpace(v))
	return nil
}
