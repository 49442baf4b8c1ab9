package binpacking

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/wyfcoding/binpack/xerrors"
)

// Item 一件待装箱的物品（由 ItemType 按需求展开）。
type Item struct {
	Type int     `json:"type"`
	Size float64 `json:"size"`
}

// Bin 一个箱子。
type Bin struct {
	ID        int     `json:"id"`
	Capacity  float64 `json:"capacity"`
	Remaining float64 `json:"remaining"`
	Class     int     `json:"class,omitempty"` // Harmonic 分组，从 1 开始
	Items     []Item  `json:"items"`
}

func (b *Bin) fits(it Item, tol float64) bool {
	return b.Remaining >= it.Size-tol
}

func (b *Bin) add(it Item) {
	b.Items = append(b.Items, it)
	b.Remaining -= it.Size
}

// Heuristic 基线启发式名称。
type Heuristic string

const (
	HeuristicFF       Heuristic = "ff"
	HeuristicBF       Heuristic = "bf"
	HeuristicFFD      Heuristic = "ffd"
	HeuristicBFD      Heuristic = "bfd"
	HeuristicHarmonic Heuristic = "harmonic"
)

// Heuristics 全部基线启发式，按固定顺序。
var Heuristics = []Heuristic{HeuristicFF, HeuristicBF, HeuristicFFD, HeuristicBFD, HeuristicHarmonic}

// DefaultHarmonicK Harmonic-k 的默认分组数。
const DefaultHarmonicK = 6

// ExpandItems 把实例按需求展开为物品列表，顺序与 Items 一致。
func ExpandItems(inst *Instance) []Item {
	items := make([]Item, 0, inst.TotalItems())
	for _, it := range inst.Items {
		for range it.Demand {
			items = append(items, Item{Type: it.ID, Size: it.Size})
		}
	}
	return items
}

// Packer 基线装箱器。
type Packer struct {
	capacity float64
	tol      float64
	logger   *slog.Logger
}

// NewPacker 创建容量为 capacity 的装箱器。
func NewPacker(capacity float64, logger *slog.Logger) *Packer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Packer{capacity: capacity, tol: DefaultEpsilon * capacity, logger: logger}
}

func (p *Packer) open(bins []*Bin, class int, it Item) []*Bin {
	b := &Bin{ID: len(bins) + 1, Capacity: p.capacity, Remaining: p.capacity, Class: class}
	b.add(it)
	return append(bins, b)
}

// FirstFit 放入第一个能装下的箱子，否则开新箱。
func (p *Packer) FirstFit(items []Item) []*Bin {
	var bins []*Bin
	for _, it := range items {
		placed := false
		for _, b := range bins {
			if b.fits(it, p.tol) {
				b.add(it)
				placed = true
				break
			}
		}
		if !placed {
			bins = p.open(bins, 0, it)
		}
	}
	return bins
}

// BestFit 放入装下后剩余空间最小的箱子。
func (p *Packer) BestFit(items []Item) []*Bin {
	var bins []*Bin
	for _, it := range items {
		var best *Bin
		for _, b := range bins {
			if b.fits(it, p.tol) && (best == nil || b.Remaining < best.Remaining) {
				best = b
			}
		}
		if best == nil {
			bins = p.open(bins, 0, it)
			continue
		}
		best.add(it)
	}
	return bins
}

// FirstFitDecreasing 按尺寸降序后 FirstFit。
func (p *Packer) FirstFitDecreasing(items []Item) []*Bin {
	return p.FirstFit(sortDecreasing(items))
}

// BestFitDecreasing 按尺寸降序后 BestFit。
func (p *Packer) BestFitDecreasing(items []Item) []*Bin {
	return p.BestFit(sortDecreasing(items))
}

// Harmonic 按 (1/(j+2), 1/(j+1)] 区间把物品分成 k 组，每组内部 FirstFit。
func (p *Packer) Harmonic(items []Item, k int) []*Bin {
	if k < 2 {
		k = DefaultHarmonicK
	}
	groups := make([][]*Bin, k)
	for _, it := range items {
		g := k - 1
		for j := 0; j < k-1; j++ {
			if it.Size > p.capacity/float64(j+2) {
				g = j
				break
			}
		}

		placed := false
		for _, b := range groups[g] {
			if b.fits(it, p.tol) {
				b.add(it)
				placed = true
				break
			}
		}
		if !placed {
			groups[g] = p.open(groups[g], g+1, it)
		}
	}

	var bins []*Bin
	for _, grp := range groups {
		bins = append(bins, grp...)
	}
	for i, b := range bins {
		b.ID = i + 1
	}
	return bins
}

// Run 按名称执行基线启发式。
func (p *Packer) Run(h Heuristic, items []Item) ([]*Bin, error) {
	start := time.Now()
	var bins []*Bin
	switch h {
	case HeuristicFF:
		bins = p.FirstFit(items)
	case HeuristicBF:
		bins = p.BestFit(items)
	case HeuristicFFD:
		bins = p.FirstFitDecreasing(items)
	case HeuristicBFD:
		bins = p.BestFitDecreasing(items)
	case HeuristicHarmonic:
		bins = p.Harmonic(items, DefaultHarmonicK)
	default:
		return nil, fmt.Errorf("%w: %q", xerrors.ErrUnknownHeuristic, h)
	}

	p.logger.Debug("baseline heuristic completed",
		"heuristic", string(h), "items_count", len(items), "bins_count", len(bins), "duration", time.Since(start))
	return bins, nil
}

// ParseHeuristic 解析启发式名称。
func ParseHeuristic(s string) (Heuristic, error) {
	h := Heuristic(strings.ToLower(strings.TrimSpace(s)))
	if h == "hk" {
		return HeuristicHarmonic, nil
	}
	if slices.Contains(Heuristics, h) {
		return h, nil
	}
	return "", fmt.Errorf("%w: %q", xerrors.ErrUnknownHeuristic, s)
}

// RunHeuristic 对实例执行一个基线启发式。
func RunHeuristic(inst *Instance, h Heuristic, logger *slog.Logger) ([]*Bin, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return NewPacker(inst.Capacity, logger).Run(h, ExpandItems(inst))
}

// sortDecreasing 复制并按尺寸降序稳定排序。
func sortDecreasing(items []Item) []Item {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b Item) int {
		return cmp.Compare(b.Size, a.Size)
	})
	return sorted
}
