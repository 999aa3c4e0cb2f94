package windows

import (
	"slices"
	"strconv"
	"strings"
)

// layerCounts maps model name fragments to layer counts. Order matters:
// the first fragment contained in the name wins.
var layerCounts = []struct {
	fragment string
	layers   int
}{
	{"Qwen3-4B", 36},
	{"Qwen3-30B-A3B", 30},
	{"Qwen3-32B", 32},
	{"Hermes-4-70B", 70},
	{"Llama-3.1-8B", 32},
	{"Llama-3.1-70B", 80},
	{"gpt-oss-20b", 20},
	{"gpt-oss-120b", 120},
}

const defaultLayerCount = 36

// ModelLayers returns the number of transformer layers in model.
func ModelLayers(model string) int {
	for _, c := range layerCounts {
		if strings.Contains(model, c.fragment) {
			return c.layers
		}
	}
	return defaultLayerCount
}

// ParseLayers parses input such as "0-5, 7" into the sorted distinct
// layers below total. Malformed or out of range parts are skipped.
func ParseLayers(input string, total int) []int {
	var out []int
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			a, errA := strconv.Atoi(strings.TrimSpace(lo))
			b, errB := strconv.Atoi(strings.TrimSpace(hi))
			if errA != nil || errB != nil || a < 0 || a > b || b >= total {
				continue
			}
			for l := a; l <= b; l++ {
				out = append(out, l)
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n >= total {
			continue
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// FormatLayerSet renders sorted layers as "0-5,7". An empty set is "[]".
func FormatLayerSet(layers []int) string {
	if len(layers) == 0 {
		return "[]"
	}
	var parts []string
	for i := 0; i < len(layers); {
		j := i
		for j+1 < len(layers) && layers[j+1] == layers[j]+1 {
			j++
		}
		if i == j {
			parts = append(parts, strconv.Itoa(layers[i]))
		} else {
			parts = append(parts, strconv.Itoa(layers[i])+"-"+strconv.Itoa(layers[j]))
		}
		i = j + 1
	}
	return strings.Join(parts, ",")
}

// MissingLayers returns the layers below total no shard holds.
func MissingLayers(assigned map[string][]int, total int) []int {
	held := make(map[int]bool, total)
	for _, layers := range assigned {
		for _, l := range layers {
			held[l] = true
		}
	}
	var out []int
	for l := range total {
		if !held[l] {
			out = append(out, l)
		}
	}
	return out
}

// NextInstances links shards into a ring. A shard hands off to the shard
// whose first layer follows its last one; the shard holding the highest
// layers wraps to the shard that starts at layer 0.
func NextInstances(assigned map[string][]int) map[string]string {
	byFirst := make(map[int]string, len(assigned))
	first := ""
	for inst, layers := range assigned {
		if len(layers) == 0 {
			continue
		}
		byFirst[slices.Min(layers)] = inst
	}
	if inst, ok := byFirst[0]; ok {
		first = inst
	}

	next := make(map[string]string, len(byFirst))
	for inst, layers := range assigned {
		if len(layers) == 0 {
			continue
		}
		if to, ok := byFirst[slices.Max(layers)+1]; ok {
			next[inst] = to
		} else {
			next[inst] = first
		}
	}
	return next
}
