package crucible

import (
	"fmt"
	"regexp"
)

// headPattern and bodyPattern do regex-based head/body extraction. The
// inputs here are already-rendered, shim-produced documents, so a full
// tokenizer buys nothing over the patterns.
var (
	headPattern = regexp.MustCompile(`(?is)<head[^>]*>.*?</head\s*>`)
	bodyPattern = regexp.MustCompile(`(?is)<body[^>]*>(.*?)</body\s*>`)
)

// suspenseOpenPattern matches one opening boundary marker; boundary ids
// are limited to [A-Za-z0-9_]+. Go's RE2
// engine has no backreferences, so the matching close marker for a given
// id is located with a second, id-specific pattern rather than a single
// regex (see splitSuspenseBoundaries).
var suspenseOpenPattern = regexp.MustCompile(`<!--\s*SUSPENSE:([A-Za-z0-9_]+)\s*-->`)

// htmlSegment is one pre-chunk slice of parsed HTML, tagged with the
// ChunkType it will become.
type htmlSegment struct {
	kind    ChunkType
	content string
	id      string
}

// parseHTMLChunks splits rendered HTML into head/shell/suspense/content
// segments.
func parseHTMLChunks(htmlInput string) []htmlSegment {
	head := headPattern.FindString(htmlInput)
	bodyMatch := bodyPattern.FindStringSubmatch(htmlInput)

	if head == "" && bodyMatch == nil {
		return []htmlSegment{{kind: ChunkContent, content: htmlInput}}
	}

	var segs []htmlSegment
	if head != "" {
		segs = append(segs, htmlSegment{kind: ChunkHead, content: head})
	}
	if bodyMatch != nil {
		segs = append(segs, splitSuspenseBoundaries(bodyMatch[1])...)
	}
	return segs
}

// splitSuspenseBoundaries scans body for
// `<!-- SUSPENSE:ID -->...<!-- /SUSPENSE:ID -->` boundaries, emitting the
// preceding non-empty text as a shell chunk and the raw boundary content
// as a suspense chunk (RenderToStream wraps it afterwards), then
// whatever remains after the last boundary as one content chunk.
func splitSuspenseBoundaries(body string) []htmlSegment {
	var segs []htmlSegment
	cursor := 0

	for {
		rest := body[cursor:]
		loc := suspenseOpenPattern.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		openStart := cursor + loc[0]
		openEnd := cursor + loc[1]
		id := rest[loc[2]:loc[3]]

		closePattern := regexp.MustCompile(`<!--\s*/SUSPENSE:` + regexp.QuoteMeta(id) + `\s*-->`)
		closeLoc := closePattern.FindStringIndex(body[openEnd:])
		if closeLoc == nil {
			// Unterminated boundary: stop scanning and let the remainder
			// fall through as trailing content; malformed suspense markup
			// is not a guaranteed-handled case.
			break
		}
		closeStart := openEnd + closeLoc[0]
		closeEnd := openEnd + closeLoc[1]

		if pre := body[cursor:openStart]; pre != "" {
			segs = append(segs, htmlSegment{kind: ChunkShell, content: pre})
		}
		segs = append(segs, htmlSegment{kind: ChunkSuspense, content: body[openEnd:closeStart], id: id})
		cursor = closeEnd
	}

	if rest := body[cursor:]; rest != "" {
		segs = append(segs, htmlSegment{kind: ChunkContent, content: rest})
	}
	return segs
}

// wrapSuspenseBoundary wraps resolved suspense content for streaming: a
// <template> holding the resolved content plus a script that swaps it
// into the live DOM element `#suspense-<id>`. When progressive hydration
// is disabled the content is returned verbatim.
func wrapSuspenseBoundary(id, content string, progressive bool) string {
	if !progressive {
		return content
	}
	return fmt.Sprintf(
		`<template data-suspense=%q data-resolved="true">%s</template><script>(function(){var t=document.querySelector('template[data-suspense="%s"]');var el=document.getElementById("suspense-%s");if(t&&el){el.replaceWith(t.content.cloneNode(true));}})();</script>`,
		id, content, id, id,
	)
}

// sanitizeGenericStreamError produces the consumer-facing message for a
// failed suspense future, deliberately not echoing internal error detail.
func sanitizeGenericStreamError(boundaryID string) string {
	return fmt.Sprintf("<!-- suspense boundary %s failed to resolve -->", boundaryID)
}
