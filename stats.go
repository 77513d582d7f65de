/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"slices"
	"time"
)

const (
	topKeywordLimit = 10
	recentWishLimit = 5
	minKeywordRunes = 2
)

var stopWords = map[string]bool{
	"的": true, "在": true, "和": true, "是": true, "我": true, "了": true,
	"有": true, "就": true, "都": true, "会": true, "说": true, "他": true,
	"她": true, "它": true, "这": true, "那": true, "一个": true, "能够": true,
	"可以": true, "希望": true, "愿望": true, "祝福": true,
}

type Keyword struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

type Stats struct {
	Total        int          `json:"total"`
	Today        int          `json:"today"`
	TopKeywords  []Keyword    `json:"topWords"`
	RecentWishes []PublicWish `json:"recentWishes"`
}

// summarize computes stats over wishes, which must be in acceptance order.
// Today is the calendar day of now in now's location.
func summarize(wishes []Wish, now time.Time) Stats {
	stats := Stats{
		Total:        len(wishes),
		TopKeywords:  topKeywords(wishes, topKeywordLimit),
		RecentWishes: []PublicWish{},
	}

	y, m, d := now.Date()
	for _, w := range wishes {
		wy, wm, wd := w.CreatedAt.In(now.Location()).Date()
		if wy == y && wm == m && wd == d {
			stats.Today++
		}
	}

	recent := wishes[max(0, len(wishes)-recentWishLimit):]
	for i := len(recent) - 1; i >= 0; i-- {
		stats.RecentWishes = append(stats.RecentWishes, recent[i].Public())
	}

	return stats
}

// isHan reports whether r is in the CJK Unified Ideographs block up to
// U+9FA5. Extension blocks, compatibility ideographs and marks such as 々
// do not count.
func isHan(r rune) bool {
	return r >= '\u4e00' && r <= '\u9fa5'
}

// hanRuns returns every maximal run of Han ideographs in text.
func hanRuns(text string) []string {
	var runs []string
	start := -1

	for i, r := range text {
		if isHan(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			runs = append(runs, text[start:i])
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, text[start:])
	}

	return runs
}

// topKeywords counts Han runs of at least two ideographs that are not stop
// words, most frequent first. Ties keep the order the words were first seen.
func topKeywords(wishes []Wish, limit int) []Keyword {
	counts := make(map[string]int)
	var order []string

	for _, w := range wishes {
		for _, word := range hanRuns(w.Text) {
			if len([]rune(word)) < minKeywordRunes || stopWords[word] {
				continue
			}
			if counts[word] == 0 {
				order = append(order, word)
			}
			counts[word]++
		}
	}

	keywords := make([]Keyword, 0, len(order))
	for _, word := range order {
		keywords = append(keywords, Keyword{Word: word, Count: counts[word]})
	}

	slices.SortStableFunc(keywords, func(a, b Keyword) int {
		return b.Count - a.Count
	})

	return keywords[:min(limit, len(keywords))]
}
