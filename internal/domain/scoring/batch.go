package scoring

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/molscore/internal/domain/molecule"
	"github.com/turtacn/molscore/pkg/errors"
)

// BatchFunc computes one value per valid molecule, in order.
type BatchFunc[R any] func(ctx context.Context, mols []*molecule.Molecule) ([]R, error)

// ScoreBatch validates smiles, runs compute on the valid molecules only and
// reassembles a result aligned with the input. Invalid slots hold sentinel.
// compute is not called when no identifier is valid. The validity mask goes
// to the report attached with WithValidityReport, if any.
func ScoreBatch[R any](ctx context.Context, tk molecule.Toolkit, smiles []string, sentinel R, compute BatchFunc[R]) ([]R, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	batch := molecule.Partition(tk, smiles)
	reportValidity(ctx, batch.Valid)
	return ScorePartition(ctx, batch, sentinel, compute)
}

// ScorePartition is ScoreBatch over an already validated batch.
func ScorePartition[R any](ctx context.Context, batch molecule.Batch, sentinel R, compute BatchFunc[R]) ([]R, error) {
	var values []R
	if batch.Len() > 0 {
		var err error
		values, err = compute(ctx, batch.Molecules)
		if err != nil {
			return nil, err
		}
	}
	return Reassemble(batch.Positions, batch.Size(), values, sentinel)
}

// Reassemble scatters values back to their input positions in a slice of
// length size. Every other slot holds fill.
func Reassemble[R any](positions []int, size int, values []R, fill R) ([]R, error) {
	if len(values) != len(positions) {
		return nil, errors.New(errors.ErrCodeInternal, "result count does not match valid molecules").
			WithDetail(fmt.Sprintf("values=%d positions=%d", len(values), len(positions)))
	}
	out := make([]R, size)
	for i := range out {
		out[i] = fill
	}
	for j, p := range positions {
		out[p] = values[j]
	}
	return out, nil
}

// MapOrdered applies fn to every item with at most workers calls in flight
// and returns the results in input order. workers <= 1 runs sequentially.
func MapOrdered[T, R any](ctx context.Context, workers int, items []T, fn func(T) R) ([]R, error) {
	out := make([]R, len(items))
	if workers <= 1 || len(items) < 2 {
		for i, it := range items {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out[i] = fn(it)
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range items {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = fn(items[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// PerMolecule lifts a per-molecule function into a BatchFunc.
func PerMolecule[R any](workers int, fn func(*molecule.Molecule) R) BatchFunc[R] {
	return func(ctx context.Context, mols []*molecule.Molecule) ([]R, error) {
		return MapOrdered(ctx, workers, mols, fn)
	}
}
