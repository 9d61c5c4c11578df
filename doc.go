/*
Package cardano builds, signs and broadcasts Cardano value transfers on behalf
of a connector service.

A transfer is funded either by every utxo of a list of addresses or by an
explicit list of utxo references, and pays a list of destinations. The
builder spends all funding inputs, adds the destinations, prices the result
with the linear fee rule and returns the remainder to a change output. Inputs
are then witnessed locally with raw keys, or, when any input is held by a
custodial key service, a signing request is produced instead.

Chain data comes from a Backend (see the graphql and rpcclient packages) and
custodial requests go to a SignatureStore (see the kms package).
*/

package cardano
