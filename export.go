/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"
)

// cardFileName builds a zip entry name such as "001_Jane_Doe_1b4e28ba.png".
func cardFileName(index int, wish Wish) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return '_'
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			return r
		default:
			return -1
		}
	}, wish.Name)
	if name == "" {
		name = "wish"
	}

	id := wish.ID
	if len(id) > 8 {
		id = id[:8]
	}

	return fmt.Sprintf("%03d_%s_%s.png", index+1, name, id)
}

// exportCards writes one rendered card per wish into a zip archive on w,
// in acceptance order.
func exportCards(w io.Writer, renderer *CardRenderer, wishes []Wish) error {
	zw := zip.NewWriter(w)

	for i, wish := range wishes {
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     cardFileName(i, wish),
			Method:   zip.Store,
			Modified: wish.CreatedAt.In(time.Local),
		})
		if err != nil {
			return err
		}

		if err := renderer.Render(f, wish); err != nil {
			return fmt.Errorf("render card for wish %s: %w", wish.ID, err)
		}
	}

	return zw.Close()
}
