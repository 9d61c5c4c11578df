package cardano

import "github.com/pkg/errors"

// FeeCalculator prices a draft by its serialised size.
type FeeCalculator interface {
	// MinFee is the fee for the draft as it stands, sized as a complete
	// signed transaction.
	MinFee(draft TransactionDraft) (Lovelace, error)

	// FeeForOutput is the marginal fee of adding one more output.
	FeeForOutput(output TxOutput) (Lovelace, error)
}

// LinearFee is the shelley fee rule: A lovelace per byte plus a constant B.
type LinearFee struct {
	A uint64
	B uint64
}

func (f LinearFee) MinFee(draft TransactionDraft) (fee Lovelace, err error) {
	tx, err := draft.sizingTransaction()
	if err != nil {
		return
	}

	data, err := tx.Bytes()
	if err != nil {
		return
	}

	return f.forSize(len(data))
}

func (f LinearFee) FeeForOutput(output TxOutput) (fee Lovelace, err error) {
	data, err := output.Bytes()
	if err != nil {
		return
	}
	fee = Lovelace(f.A * uint64(len(data)))
	return
}

func (f LinearFee) forSize(size int) (fee Lovelace, err error) {
	perByte := Lovelace(f.A * uint64(size))
	if fee, err = perByte.Add(Lovelace(f.B)); err != nil {
		err = errors.Wrap(err, "fee overflow")
	}
	return
}
