package crypto

import (
	"math/big"
)

var big1 = big.NewInt(1)

// Factorize splits a composite pq into p < q using Pollard's rho. The
// handshake pq is a product of two primes close to 2^31, so the walk
// terminates quickly.
func Factorize(pq *big.Int) (p, q *big.Int) {
	p = new(big.Int).Set(pq)
	q = big.NewInt(1)

	x := big.NewInt(2)
	y := big.NewInt(2)
	d := big.NewInt(1)

	for d.Cmp(big1) == 0 {
		x = rhoStep(x, pq)
		y = rhoStep(rhoStep(y, pq), pq)

		diff := new(big.Int).Sub(x, y)
		diff.Abs(diff)
		d.GCD(nil, nil, diff, pq)
	}

	p.Set(d)
	q.Div(pq, d)
	if p.Cmp(q) > 0 {
		p, q = q, p
	}
	return p, q
}

func rhoStep(x, n *big.Int) *big.Int {
	r := new(big.Int).Mul(x, x)
	r.Add(r, big1)
	return r.Mod(r, n)
}

// FactorizePQ factors a big-endian pq byte string as delivered in
// resPQ, returning big-endian p and q with p < q.
func FactorizePQ(pq []byte) (p, q []byte) {
	bp, bq := Factorize(new(big.Int).SetBytes(pq))
	return bp.Bytes(), bq.Bytes()
}
