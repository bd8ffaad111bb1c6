package tracer

import "github.com/blendtrace/blend/bpath"

// arrayOfPointers resolves the "array-of-pointers" pattern shared by
// Object.mat and Mesh.mat: a scalar count field, a pointer to an array
// block, and totcol successive pointers inside that block — each
// resolved through the address index. The array block itself is
// included as a dependency, matching the array-of-pointers pattern
// described for Object/Mesh.
func arrayOfPointers(structName, countField, ptrField string, blockIndex int, src Source) ([]int, error) {
	view, err := src.FieldView(blockIndex)
	if err != nil {
		return nil, err
	}
	count, err := view.ReadFieldU32(structName, countField)
	if err != nil || count == 0 {
		return nil, nil
	}
	arrPtr, err := view.ReadFieldPointer(structName, ptrField)
	if err != nil || arrPtr == 0 {
		return nil, nil
	}
	arrIndex, ok, err := resolvePointer(src, arrPtr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	deps := []int{arrIndex}
	arrView, err := src.FieldView(arrIndex)
	if err != nil {
		return deps, nil
	}
	pointerWidth := src.Header().PointerWidth
	for i := 0; i < int(count); i++ {
		ptr, err := arrView.ReadPointer(i * pointerWidth)
		if err != nil || ptr == 0 {
			continue
		}
		idx, ok, err := resolvePointer(src, ptr)
		if err != nil {
			return nil, err
		}
		if ok {
			deps = append(deps, idx)
		}
	}
	return deps, nil
}

// linkedList walks a ListBase-shaped { first, last } field pair: start
// at first, resolve to a block, record it, then follow elemNextField
// inside each element until a null pointer or a cycle is seen.
func linkedList(structName, firstField string, elemStruct, elemNextField string, blockIndex int, src Source) ([]int, error) {
	view, err := src.FieldView(blockIndex)
	if err != nil {
		return nil, err
	}
	first, err := view.ReadFieldPointer(structName, firstField)
	if err != nil || first == 0 {
		return nil, nil
	}

	var deps []int
	visited := map[uint64]bool{}
	cur := first
	for cur != 0 && !visited[cur] {
		visited[cur] = true
		idx, ok, err := resolvePointer(src, cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		deps = append(deps, idx)

		elemView, err := src.FieldView(idx)
		if err != nil {
			break
		}
		next, err := elemView.ReadFieldPointer(elemStruct, elemNextField)
		if err != nil {
			break
		}
		cur = next
	}
	return deps, nil
}

// singlePointer resolves one named pointer field to a dependency.
func singlePointer(structName, field string, blockIndex int, src Source) ([]int, error) {
	view, err := src.FieldView(blockIndex)
	if err != nil {
		return nil, err
	}
	ptr, err := view.ReadFieldPointer(structName, field)
	if err != nil || ptr == 0 {
		return nil, nil
	}
	idx, ok, err := resolvePointer(src, ptr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return []int{idx}, nil
}

// externalPathField reads a NUL-terminated string field, normalizes it
// through BlendPath, and returns it as a single external reference
// (empty slice if the field is absent or blank).
func externalPathField(structName, field string, blockIndex int, src Source) ([]string, error) {
	view, err := src.FieldView(blockIndex)
	if err != nil {
		return nil, err
	}
	raw, err := view.ReadFieldString(structName, field)
	if err != nil {
		return nil, nil
	}
	p := bpath.NewString(raw)
	stripped := p.ToPathBufStripped()
	if stripped == "" {
		return nil, nil
	}
	return []string{stripped}, nil
}
