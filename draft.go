package cardano

import (
	"github.com/pkg/errors"
)

// TransactionDraft is the value handed from one pipeline stage to the next.
// Stages never modify a draft they receive; each returns a fresh copy.
type TransactionDraft struct {
	inputs      []ResolvedInput
	txInputs    []TxInput
	outputs     []TxOutput
	totalInput  Lovelace
	totalOutput Lovelace
	fee         Lovelace
	ttl         uint64
	changeIndex int
}

func NewTransactionDraft(ttl uint64) TransactionDraft {
	return TransactionDraft{ttl: ttl, changeIndex: -1}
}

// WithInputs spends every resolved utxo, in the order given.
func (d TransactionDraft) WithInputs(resolved []ResolvedInput) (next TransactionDraft, err error) {
	next = d.clone()

	for _, in := range resolved {
		hash, hashErr := DecodeHex(in.Utxo.TxHash)
		if hashErr != nil || len(hash) != 32 {
			err = errors.Wrapf(ErrUtxoNotFound, "bad tx hash '%s'", in.Utxo.TxHash)
			return d, err
		}

		if next.totalInput, err = next.totalInput.Add(in.Utxo.Value); err != nil {
			return d, err
		}

		next.inputs = append(next.inputs, in)
		next.txInputs = append(next.txInputs, TxInput{TxHash: hash, Index: in.Utxo.Index})
	}

	return
}

// WithOutputs appends one output per destination in list order. Amounts are
// scaled from whole units and must reach the network's minimum utxo value.
func (d TransactionDraft) WithOutputs(destinations []Destination, network Network) (next TransactionDraft, err error) {
	params, err := network.Params()
	if err != nil {
		return d, err
	}

	next = d.clone()

	for i, to := range destinations {
		address, addrErr := DecodePaymentAddress(to.Address, network)
		if addrErr != nil {
			return d, errors.Wrapf(addrErr, "to[%d]", i)
		}

		amount, amountErr := to.Value.Lovelace()
		if amountErr != nil {
			return d, errors.Wrapf(amountErr, "to[%d]", i)
		}

		if amount == 0 {
			return d, errors.Wrapf(ErrInvalidAmount, "to[%d] has zero value", i)
		}

		if amount < params.Protocol.MinUtxoValue {
			return d, errors.Wrapf(
				ErrInvalidAmount,
				"to[%d] value %s is below the minimum utxo value %s",
				i,
				amount,
				params.Protocol.MinUtxoValue)
		}

		if next.totalOutput, err = next.totalOutput.Add(amount); err != nil {
			return d, err
		}

		next.outputs = append(next.outputs, TxOutput{Address: address, Amount: uint64(amount)})
	}

	return
}

// WithChange prices the draft, including the marginal cost of a change output
// at changeAddress, then appends the change and records the fee.
func (d TransactionDraft) WithChange(changeAddress Address, calc FeeCalculator, minUtxo Lovelace) (next TransactionDraft, err error) {
	if d.changeIndex >= 0 {
		return d, errors.New("draft already has a change output")
	}

	minFee, err := calc.MinFee(d)
	if err != nil {
		return d, err
	}

	placeholder := TxOutput{Address: changeAddress, Amount: maxCoin}
	outputFee, err := calc.FeeForOutput(placeholder)
	if err != nil {
		return d, err
	}

	fee, err := minFee.Add(outputFee)
	if err != nil {
		return d, err
	}

	spent, err := d.totalOutput.Add(fee)
	if err != nil {
		return d, err
	}

	if d.totalInput < spent || d.totalInput-spent < minUtxo {
		err = errors.Wrapf(
			ErrInsufficientFunds,
			"inputs %s cannot cover outputs %s, fee %s and a change output of at least %s",
			d.totalInput,
			d.totalOutput,
			fee,
			minUtxo)
		return d, err
	}

	change := d.totalInput - spent

	next = d.clone()
	next.fee = fee
	next.changeIndex = len(next.outputs)
	next.outputs = append(next.outputs, TxOutput{Address: changeAddress, Amount: uint64(change)})

	return
}

func (d TransactionDraft) clone() TransactionDraft {
	next := d
	next.inputs = append([]ResolvedInput(nil), d.inputs...)
	next.txInputs = append([]TxInput(nil), d.txInputs...)
	next.outputs = append([]TxOutput(nil), d.outputs...)
	return next
}

func (d TransactionDraft) Inputs() []ResolvedInput {
	return append([]ResolvedInput(nil), d.inputs...)
}

func (d TransactionDraft) Outputs() []TxOutput {
	return append([]TxOutput(nil), d.outputs...)
}

// Refs returns the signing reference of every input, in input order.
func (d TransactionDraft) Refs() []SigningRef {
	refs := make([]SigningRef, len(d.inputs))
	for i, in := range d.inputs {
		refs[i] = in.Ref
	}
	return refs
}

func (d TransactionDraft) TotalInput() Lovelace  { return d.totalInput }
func (d TransactionDraft) TotalOutput() Lovelace { return d.totalOutput }
func (d TransactionDraft) Fee() Lovelace         { return d.fee }
func (d TransactionDraft) Ttl() uint64           { return d.ttl }

// Change returns the change amount and false when no change was added yet.
func (d TransactionDraft) Change() (Lovelace, bool) {
	if d.changeIndex < 0 {
		return 0, false
	}
	return Lovelace(d.outputs[d.changeIndex].Amount), true
}

// Balanced reports whether inputs equal outputs plus fee exactly.
func (d TransactionDraft) Balanced() bool {
	var sum Lovelace
	var err error
	for _, out := range d.outputs {
		if sum, err = sum.Add(Lovelace(out.Amount)); err != nil {
			return false
		}
	}
	if sum, err = sum.Add(d.fee); err != nil {
		return false
	}
	return sum == d.totalInput
}

func (d TransactionDraft) Body() TxBody {
	return TxBody{
		Inputs:  append([]TxInput(nil), d.txInputs...),
		Outputs: d.Outputs(),
		Fee:     uint64(d.fee),
		Ttl:     d.ttl,
	}
}

// sizingTransaction is the draft dressed as a complete signed transaction:
// a maximum width fee and one witness per input.
func (d TransactionDraft) sizingTransaction() (*Transaction, error) {
	body := d.Body()
	body.Fee = maxCoin

	witnesses := make([]VKeyWitness, len(d.inputs))
	for i := range witnesses {
		witnesses[i] = dummyWitness
	}

	return NewTransaction(body, witnesses)
}
