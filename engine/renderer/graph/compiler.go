package graph

import (
	"errors"
	"fmt"

	dag "github.com/dominikbraun/graph"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type resourceKey struct {
	buffer bool
	index  uint32
}

// resourceAccess is everything one pass does to one resource.
type resourceAccess struct {
	key        resourceKey
	image      ImageHandle
	buffer     BufferHandle
	accesses   []metadata.AccessType
	reads      bool
	writes     bool
	attachment bool
}

// passAccesses merges the inputs and outputs of a pass per resource, in the
// order the resources first appear.
func passAccesses[A any](p *Pass[A]) []resourceAccess {
	var out []resourceAccess
	find := func(key resourceKey) *resourceAccess {
		for i := range out {
			if out[i].key == key {
				return &out[i]
			}
		}
		return nil
	}
	add := func(key resourceKey, image ImageHandle, buffer BufferHandle, access metadata.AccessType, write, attachment bool) {
		ra := find(key)
		if ra == nil {
			out = append(out, resourceAccess{key: key, image: image, buffer: buffer})
			ra = &out[len(out)-1]
		}
		if !containsAccess(ra.accesses, access) {
			ra.accesses = append(ra.accesses, access)
		}
		if write {
			ra.writes = true
		} else {
			ra.reads = true
		}
		ra.attachment = ra.attachment || attachment
	}

	for _, in := range p.inputs {
		if in.isBuffer() {
			add(resourceKey{buffer: true, index: in.Buffer.Index()}, ImageHandle{}, in.Buffer, in.Access, false, false)
		} else {
			add(resourceKey{index: in.Image.Index()}, in.Image, BufferHandle{}, in.Access, false, false)
		}
	}
	for _, o := range p.outputs {
		if o.isBuffer() {
			add(resourceKey{buffer: true, index: o.Buffer.Index()}, ImageHandle{}, o.Buffer, o.Access, true, false)
		} else {
			add(resourceKey{index: o.Image.Index()}, o.Image, BufferHandle{}, o.Access, true, o.Kind == OutputDrawImage)
		}
	}
	return out
}

func containsAccess(list []metadata.AccessType, a metadata.AccessType) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

// validatePasses reports configuration errors before anything is compiled.
func validatePasses[A any](passes []*Pass[A], res *GraphResources) error {
	names := make(map[string]bool, len(passes))
	presenting := 0
	for _, p := range passes {
		if p == nil {
			return fmt.Errorf("%w: nil pass", core.ErrInvalidConfig)
		}
		if p.name == "" {
			return fmt.Errorf("%w: pass without a name", core.ErrInvalidConfig)
		}
		if names[p.name] {
			return fmt.Errorf("%w: %q", core.ErrDuplicatePassName, p.name)
		}
		names[p.name] = true

		if err := validatePass(p, res); err != nil {
			return fmt.Errorf("pass %q: %w", p.name, err)
		}
		if p.present {
			presenting++
		}
	}
	if presenting > 1 {
		return fmt.Errorf("%w: %d passes present", core.ErrPresentNotLast, presenting)
	}
	return nil
}

func validatePass[A any](p *Pass[A], res *GraphResources) error {
	ioNames := make(map[string]bool)
	seenInputs := make(map[resourceKey]bool)
	for _, in := range p.inputs {
		if ioNames[in.Name] {
			return fmt.Errorf("%w: input name %q", core.ErrDuplicateInput, in.Name)
		}
		ioNames[in.Name] = true

		key := resourceKey{index: in.Image.Index()}
		if in.isBuffer() {
			key = resourceKey{buffer: true, index: in.Buffer.Index()}
			if err := res.checkBuffer(in.Buffer); err != nil {
				return fmt.Errorf("input %q: %w", in.Name, asUnknownHandle(err))
			}
		} else if err := res.checkImage(in.Image); err != nil {
			return fmt.Errorf("input %q: %w", in.Name, asUnknownHandle(err))
		}
		if seenInputs[key] {
			return fmt.Errorf("%w: input %q", core.ErrDuplicateInput, in.Name)
		}
		seenInputs[key] = true

		if !in.Access.IsRead() || in.Access == metadata.AccessTypeNothing || in.Access == metadata.AccessTypePresent {
			return fmt.Errorf("%w: input %q cannot read with %s", core.ErrInvalidAccess, in.Name, in.Access)
		}
		if in.Kind == InputSampleImage {
			switch metadata.AccessInfoOf(in.Access).Layout {
			case metadata.ImageLayoutShaderReadOnlyOptimal,
				metadata.ImageLayoutDepthStencilReadOnlyOptimal,
				metadata.ImageLayoutGeneral:
			default:
				return fmt.Errorf("%w: input %q cannot sample with %s", core.ErrInvalidAccess, in.Name, in.Access)
			}
		}
	}

	seenOutputs := make(map[resourceKey]bool)
	var colorSlots []uint32
	depth := 0
	for _, o := range p.outputs {
		if ioNames[o.Name] {
			return fmt.Errorf("%w: output name %q", core.ErrDuplicateInput, o.Name)
		}
		ioNames[o.Name] = true

		key := resourceKey{index: o.Image.Index()}
		if o.isBuffer() {
			key = resourceKey{buffer: true, index: o.Buffer.Index()}
			if err := res.checkBuffer(o.Buffer); err != nil {
				return fmt.Errorf("output %q: %w", o.Name, asUnknownHandle(err))
			}
		} else if err := res.checkImage(o.Image); err != nil {
			return fmt.Errorf("output %q: %w", o.Name, asUnknownHandle(err))
		}
		if seenOutputs[key] {
			return fmt.Errorf("%w: output %q", core.ErrDuplicateInput, o.Name)
		}
		seenOutputs[key] = true

		if o.Kind != OutputDrawImage {
			if !o.Access.IsWrite() {
				return fmt.Errorf("%w: output %q cannot write with %s", core.ErrInvalidAccess, o.Name, o.Access)
			}
			continue
		}

		if p.kind != PassGraphics {
			return fmt.Errorf("%w: compute pass draws into %q", core.ErrInvalidAttachment, o.Name)
		}
		img, _ := res.GetImage(o.Image)
		if err := o.Attachment.Validate(img.Config.Format); err != nil {
			return fmt.Errorf("%w: output %q: %v", core.ErrInvalidAttachment, o.Name, err)
		}
		if o.Attachment.Kind.IsDepth() {
			depth++
		} else {
			colorSlots = append(colorSlots, o.Attachment.Kind.Slot())
		}
	}

	if p.kind == PassGraphics && len(colorSlots) == 0 && depth == 0 {
		return core.ErrMissingAttachment
	}
	if depth > 1 {
		return fmt.Errorf("%w: %d depth attachments", core.ErrInvalidAttachment, depth)
	}
	if len(colorSlots)+depth > metadata.MaxAttachments {
		return fmt.Errorf("%w: %d attachments, at most %d are supported",
			core.ErrInvalidAttachment, len(colorSlots)+depth, metadata.MaxAttachments)
	}
	used := make([]bool, len(colorSlots))
	for _, slot := range colorSlots {
		if int(slot) >= len(colorSlots) {
			return fmt.Errorf("%w: color slots must be numbered 0..%d, got %d",
				core.ErrInvalidAttachment, len(colorSlots)-1, slot)
		}
		if used[slot] {
			return fmt.Errorf("%w: color slot %d used twice", core.ErrInvalidAttachment, slot)
		}
		used[slot] = true
	}
	if p.present {
		if p.kind != PassGraphics || len(colorSlots) == 0 {
			return fmt.Errorf("%w: a presenting pass needs color attachment 0", core.ErrInvalidAttachment)
		}
	}
	return nil
}

func asUnknownHandle(err error) error {
	if errors.Is(err, core.ErrStaleHandle) {
		return fmt.Errorf("%w (%v)", core.ErrUnknownHandle, err)
	}
	return err
}

type resourceState struct {
	lastWriter int
	readers    []int
	pending    []int
}

// dependencyGraph links the passes that touch the same resource:
// read-after-write, write-after-write and write-after-read. For each
// resource the passes are visited in declaration order; a reader declared
// before the first writer is ordered after it.
func dependencyGraph(names []string, accesses [][]resourceAccess) (dag.Graph[int, int], error) {
	g := dag.New(dag.IntHash, dag.Directed(), dag.PreventCycles())
	for i := range accesses {
		if err := g.AddVertex(i); err != nil {
			return nil, fmt.Errorf("failed to add pass %q: %w", names[i], err)
		}
	}

	addEdge := func(from, to int) error {
		if from == to {
			return nil
		}
		err := g.AddEdge(from, to)
		switch {
		case err == nil, errors.Is(err, dag.ErrEdgeAlreadyExists):
			return nil
		case errors.Is(err, dag.ErrEdgeCreatesCycle):
			return fmt.Errorf("%w: %q -> %q", core.ErrCyclicDependency, names[from], names[to])
		default:
			return fmt.Errorf("failed to add edge %q -> %q: %w", names[from], names[to], err)
		}
	}

	states := make(map[resourceKey]*resourceState)
	var keys []resourceKey
	for _, pass := range accesses {
		for _, ra := range pass {
			if _, ok := states[ra.key]; !ok {
				states[ra.key] = &resourceState{lastWriter: -1}
				keys = append(keys, ra.key)
			}
		}
	}

	for _, key := range keys {
		st := states[key]
		for p, pass := range accesses {
			ra := findAccess(pass, key)
			if ra == nil {
				continue
			}
			if ra.reads {
				if st.lastWriter >= 0 {
					if err := addEdge(st.lastWriter, p); err != nil {
						return nil, err
					}
					st.readers = append(st.readers, p)
				} else {
					st.pending = append(st.pending, p)
				}
			}
			if !ra.writes {
				continue
			}
			if st.lastWriter < 0 {
				var readers []int
				for _, q := range st.pending {
					if q == p {
						continue
					}
					if err := addEdge(p, q); err != nil {
						return nil, err
					}
					readers = append(readers, q)
				}
				st.pending = nil
				st.lastWriter = p
				st.readers = readers
				continue
			}
			if err := addEdge(st.lastWriter, p); err != nil {
				return nil, err
			}
			for _, q := range st.readers {
				if err := addEdge(q, p); err != nil {
					return nil, err
				}
			}
			st.lastWriter = p
			st.readers = nil
		}
	}
	return g, nil
}

func findAccess(pass []resourceAccess, key resourceKey) *resourceAccess {
	for i := range pass {
		if pass[i].key == key {
			return &pass[i]
		}
	}
	return nil
}

// sortPasses orders the passes topologically. Among the passes that are
// ready at any point the one declared first runs first, so independent
// passes keep their declaration order.
func sortPasses(g dag.Graph[int, int], count int) ([]int, error) {
	preds, err := g.PredecessorMap()
	if err != nil {
		return nil, err
	}
	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return nil, err
	}

	inDegree := make([]int, count)
	for v := 0; v < count; v++ {
		inDegree[v] = len(preds[v])
	}
	done := make([]bool, count)
	order := make([]int, 0, count)
	for len(order) < count {
		next := -1
		for v := 0; v < count; v++ {
			if !done[v] && inDegree[v] == 0 {
				next = v
				break
			}
		}
		if next < 0 {
			return nil, core.ErrCyclicDependency
		}
		done[next] = true
		order = append(order, next)
		for succ := range adjacency[next] {
			inDegree[succ]--
		}
	}
	return order, nil
}
