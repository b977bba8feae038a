package strategy

import (
	"strings"

	"github.com/lattani/trackwright/internal/htmldom"
)

var frameworkMarkers = []string{
	"__next_data__", "data-reactroot", "ng-app", "x-data", "v-if",
}

var clientStateKeys = []string{"state", "initialstate", "props"}

// DynamicIndicators evaluates the spec's dynamic-content heuristic: a
// diagnostic flag only, never gating extraction behavior. Two or more
// matched indicators mean the page is likely a client-rendered shell.
func DynamicIndicators(rawHTML []byte, dom *htmldom.DomHandle) (likelyDynamic bool, indicators []string) {
	body := string(rawHTML)
	lower := strings.ToLower(body)

	if len(body) < 500 {
		indicators = append(indicators, "body_under_500_chars")
	}

	scriptCount := strings.Count(lower, "<script")
	totalTags := strings.Count(lower, "<")
	if totalTags > 0 && float64(scriptCount)/float64(totalTags) > 0.5 {
		indicators = append(indicators, "majority_script_children")
	}

	for _, marker := range frameworkMarkers {
		if strings.Contains(lower, marker) {
			indicators = append(indicators, "framework_marker:"+marker)
		}
	}

	externalScripts := strings.Count(lower, `<script src=`) + strings.Count(lower, `<script type="text/javascript" src=`)
	if externalScripts > 10 {
		indicators = append(indicators, "many_external_scripts")
	}

	visibleText := ""
	if dom != nil && !dom.IsEmpty() {
		visibleText = htmldom.CollectText(dom.Root())
	}
	if len(visibleText) < 200 {
		indicators = append(indicators, "sparse_visible_text")
	}

	emptyDivs := 0
	if dom != nil && !dom.IsEmpty() {
		for _, n := range dom.SelectAll("div[id]") {
			if strings.TrimSpace(htmldom.CollectText(n)) == "" {
				emptyDivs++
			}
		}
	}
	if emptyDivs > 5 {
		indicators = append(indicators, "many_empty_id_divs")
	}

	if strings.Contains(lower, "<noscript") {
		if noscriptLen := sumNoscriptLength(lower); noscriptLen > 100 {
			indicators = append(indicators, "substantial_noscript")
		}
	}

	for _, key := range clientStateKeys {
		if strings.Contains(lower, `"`+key+`"`) {
			indicators = append(indicators, "client_state_key:"+key)
			break
		}
	}

	return len(indicators) >= 2, indicators
}

func sumNoscriptLength(lower string) int {
	total := 0
	i := 0
	for {
		start := strings.Index(lower[i:], "<noscript")
		if start < 0 {
			break
		}
		start += i
		end := strings.Index(lower[start:], "</noscript>")
		if end < 0 {
			break
		}
		end += start
		total += end - start
		i = end + len("</noscript>")
	}
	return total
}
