package escrow

// escrowABIJSON is the ABI of the bounty escrow contract. The contract holds
// deposits keyed by a uint256 bounty id and enforces the relayer-only
// completion and post-expiry refund rules on chain.
const escrowABIJSON = `[
	{
		"type": "function",
		"name": "createBounty",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "token", "type": "address"},
			{"name": "amount", "type": "uint256"},
			{"name": "expiry", "type": "uint256"}
		],
		"outputs": [
			{"name": "bountyId", "type": "uint256"}
		]
	},
	{
		"type": "function",
		"name": "completeBounty",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "bountyId", "type": "uint256"},
			{"name": "recipient", "type": "address"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "refundBounty",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "bountyId", "type": "uint256"}
		],
		"outputs": []
	},
	{
		"type": "event",
		"name": "BountyCreated",
		"anonymous": false,
		"inputs": [
			{"name": "bountyId", "type": "uint256", "indexed": true},
			{"name": "payer", "type": "address", "indexed": true},
			{"name": "token", "type": "address", "indexed": false},
			{"name": "amount", "type": "uint256", "indexed": false},
			{"name": "expiry", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "BountyCompleted",
		"anonymous": false,
		"inputs": [
			{"name": "bountyId", "type": "uint256", "indexed": true},
			{"name": "recipient", "type": "address", "indexed": true},
			{"name": "amount", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "BountyRefunded",
		"anonymous": false,
		"inputs": [
			{"name": "bountyId", "type": "uint256", "indexed": true},
			{"name": "payer", "type": "address", "indexed": true},
			{"name": "amount", "type": "uint256", "indexed": false}
		]
	}
]`

// erc20ABIJSON is the minimal ERC-20 surface needed to fund the escrow.
const erc20ABIJSON = `[
	{
		"type": "function",
		"name": "approve",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"outputs": [
			{"name": "", "type": "bool"}
		]
	},
	{
		"type": "function",
		"name": "balanceOf",
		"stateMutability": "view",
		"inputs": [
			{"name": "account", "type": "address"}
		],
		"outputs": [
			{"name": "", "type": "uint256"}
		]
	}
]`
