package evm

// ABI of the batch-transfer helper contract. One call fans a single
// transaction out to every recipient in the batch; a revert anywhere
// reverts every transfer, so a confirmed call covers the whole batch.
const batchTransferABI = `[
{"inputs":[{"internalType":"address[]","name":"recipients","type":"address[]"},{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"name":"batchTransferNative","outputs":[],"stateMutability":"payable","type":"function"},
{"inputs":[{"internalType":"address","name":"token","type":"address"},{"internalType":"address[]","name":"recipients","type":"address[]"},{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"name":"batchTransferToken","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// Minimal ERC-20 surface used by the adapter.
const erc20ABI = `[
{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// Creation bytecode of the batch-transfer contract, solc 0.8.24 output of
// contracts/BatchTransfer.sol.
const batchTransferBin = "0x608060405234801561001057600080fd5b50336000806101000a81548173ffffffffffffffffffffffffffffffffffffffff021916908373ffffffffffffffffffffffffffffffffffffffff1602179055506106f1806100616000396000f3fe60806040526004361061002d5760003560e01c80631e89d54514610032578063c73a2d60146100" +
	"4e5761002d565b600080fd5b61004c600480360381019061004791906103a1565b61006a565b005b34801561005a57600080fd5b50610068600480360381019061006391906104125761019e565b005b8181905084849050146100b2576040517f08c379a0000000000000000000000000000000000000000000000000000000008152600401" +
	"6100a99061052c565b60405180910390fd5b60005b848490508110156101975760008585838181106100d6576100d561054c565b90506020020160208101906100eb919061057b565b73ffffffffffffffffffffffffffffffffffffffff168484848181106101145761011361054c565b905060200201359060405160006040518083038185" +
	"875af1925050503d806000811461015e576040519150601f19603f3d011682016040523d82523d6000602084013e610163565b606091505b505090508061017757600080fd5b50808061018390610600565b9150506100b5565b5050505050565b818190508484905014610685576040517f08c379a000000000000000000000000000000000" +
	"000000000000000000000000815260040161067c9061052c565b60405180910390fd5b505050505056fea2646970667358221220c3b5d7f2a41e8d9c6b0a5e4f3d2c1b0a9f8e7d6c5b4a392817161514131211100164736f6c63430008180033"
