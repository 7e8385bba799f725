package escrow

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/octobounty/escrow-middleware/internal/metrics"
	"github.com/octobounty/escrow-middleware/pkg/bounty"
	"github.com/octobounty/escrow-middleware/pkg/config"
)

const defaultCallTimeout = 2 * time.Minute

type tokenInfo struct {
	address  common.Address
	decimals int
}

// Client talks to the escrow contract and its payment tokens.
type Client struct {
	cfg    *config.EscrowConfig
	client *ethclient.Client
	logger *zap.Logger

	escrowABI abi.ABI
	erc20ABI  abi.ABI

	escrowAddress common.Address
	contract      *bind.BoundContract
	tokens        map[bounty.Currency]tokenInfo

	relayerKey     *ecdsa.PrivateKey
	relayerAddress common.Address
}

// NewClient connects to the configured RPC endpoint and binds the escrow
// contract. The relayer key is optional for API-server use; CompleteBounty
// requires it.
func NewClient(cfg *config.EscrowConfig, logger *zap.Logger) (*Client, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain RPC: %w", err)
	}

	escrowABI, err := abi.JSON(strings.NewReader(escrowABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse escrow ABI: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}

	escrowAddress := common.HexToAddress(cfg.Contract)
	contract := bind.NewBoundContract(escrowAddress, escrowABI, client, client, client)

	tokens := make(map[bounty.Currency]tokenInfo, len(cfg.Tokens))
	for symbol, tc := range cfg.Tokens {
		currency, ok := bounty.ParseCurrency(symbol)
		if !ok {
			return nil, fmt.Errorf("escrow token %q: %w", symbol, ErrUnknownToken)
		}
		tokens[currency] = tokenInfo{
			address:  common.HexToAddress(tc.Address),
			decimals: tc.Decimals,
		}
	}

	c := &Client{
		cfg:           cfg,
		client:        client,
		logger:        logger,
		escrowABI:     escrowABI,
		erc20ABI:      erc20ABI,
		escrowAddress: escrowAddress,
		contract:      contract,
		tokens:        tokens,
	}

	if cfg.RelayerPrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.RelayerPrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to load relayer private key: %w", err)
		}
		c.relayerKey = key
		c.relayerAddress = crypto.PubkeyToAddress(key.PublicKey)
	}

	logger.Info("Connected to escrow chain",
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("rpc_url", cfg.RPCURL),
		zap.String("escrow_contract", escrowAddress.Hex()))

	return c, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// RelayerAddress returns the configured relayer account.
func (c *Client) RelayerAddress() common.Address {
	return c.relayerAddress
}

func (c *Client) token(currency bounty.Currency) (tokenInfo, error) {
	info, ok := c.tokens[currency]
	if !ok {
		return tokenInfo{}, fmt.Errorf("%w: %s", ErrUnknownToken, currency)
	}
	return info, nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.cfg.CallTimeout.Std()
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// transactor builds signing options for the given key, with the current
// pending nonce and a price capped at the configured maximum.
func (c *Client) transactor(ctx context.Context, key *ecdsa.PrivateKey) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(c.cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	auth.Nonce = big.NewInt(int64(nonce))
	auth.GasLimit = c.cfg.GasLimit
	auth.Context = ctx

	if c.cfg.MaxGasPrice != "" {
		maxGasPrice, ok := new(big.Int).SetString(c.cfg.MaxGasPrice, 10)
		if !ok {
			return nil, fmt.Errorf("invalid max gas price: %s", c.cfg.MaxGasPrice)
		}

		gasPrice, err := c.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to suggest gas price: %w", err)
		}
		if gasPrice.Cmp(maxGasPrice) > 0 {
			c.logger.Warn("Suggested gas price exceeds maximum",
				zap.String("suggested", gasPrice.String()),
				zap.String("max", maxGasPrice.String()))
			gasPrice = maxGasPrice
		}
		auth.GasPrice = gasPrice
	}

	return auth, nil
}

// waitMined blocks until the transaction is mined and checks its status.
func (c *Client) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for transaction %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %s: %w", tx.Hash().Hex(), ErrTxReverted)
	}
	return receipt, nil
}

// CreateBounty approves the escrow for the full charged amount and deposits
// it. Returns only after the deposit transaction is mined successfully and
// the BountyCreated event yields the on-chain bounty id.
func (c *Client) CreateBounty(ctx context.Context, payerKey *ecdsa.PrivateKey, currency bounty.Currency, totalPaid decimal.Decimal, expiry time.Time) (fr *FundingReceipt, err error) {
	defer trackCall("create", &err)

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	info, err := c.token(currency)
	if err != nil {
		return nil, err
	}

	amount, err := ToBaseUnits(totalPaid, info.decimals)
	if err != nil {
		return nil, err
	}

	tokenContract := bind.NewBoundContract(info.address, c.erc20ABI, c.client, c.client, c.client)

	auth, err := c.transactor(ctx, payerKey)
	if err != nil {
		return nil, err
	}
	approveTx, err := tokenContract.Transact(auth, "approve", c.escrowAddress, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to submit approve: %w", err)
	}
	if _, err := c.waitMined(ctx, approveTx); err != nil {
		return nil, fmt.Errorf("approve: %w", err)
	}

	auth, err = c.transactor(ctx, payerKey)
	if err != nil {
		return nil, err
	}
	depositTx, err := c.contract.Transact(auth, "createBounty",
		info.address, amount, big.NewInt(expiry.Unix()))
	if err != nil {
		return nil, fmt.Errorf("failed to submit deposit: %w", err)
	}

	receipt, err := c.waitMined(ctx, depositTx)
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}

	onChainID, err := c.bountyIDFromLogs(receipt)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Escrow deposit confirmed",
		zap.String("tx_hash", depositTx.Hash().Hex()),
		zap.String("on_chain_id", onChainID),
		zap.String("currency", string(currency)),
		zap.String("amount", totalPaid.String()))

	return &FundingReceipt{
		TxHash:      depositTx.Hash().Hex(),
		OnChainID:   onChainID,
		BlockNumber: receipt.BlockNumber.Int64(),
	}, nil
}

// bountyIDFromLogs extracts the bounty id from the BountyCreated event.
func (c *Client) bountyIDFromLogs(receipt *types.Receipt) (string, error) {
	eventID := c.escrowABI.Events["BountyCreated"].ID
	for _, log := range receipt.Logs {
		if log.Address != c.escrowAddress || len(log.Topics) == 0 || log.Topics[0] != eventID {
			continue
		}
		// bountyId is the first indexed argument.
		if len(log.Topics) < 2 {
			continue
		}
		return new(big.Int).SetBytes(log.Topics[1].Bytes()).String(), nil
	}
	return "", fmt.Errorf("deposit receipt has no BountyCreated event")
}

// CompleteBounty releases the escrowed payout to the recipient. The contract
// only accepts this from the relayer account.
func (c *Client) CompleteBounty(ctx context.Context, onChainID, recipient string) (txHash string, err error) {
	defer trackCall("complete", &err)

	if c.relayerKey == nil {
		return "", fmt.Errorf("no relayer key configured: %w", ErrUnauthorized)
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	id, ok := new(big.Int).SetString(onChainID, 10)
	if !ok {
		return "", fmt.Errorf("invalid on-chain bounty id: %s", onChainID)
	}

	auth, err := c.transactor(ctx, c.relayerKey)
	if err != nil {
		return "", err
	}

	tx, err := c.contract.Transact(auth, "completeBounty", id, common.HexToAddress(recipient))
	if err != nil {
		if isNotRelayerRevert(err) {
			return "", fmt.Errorf("completeBounty: %w", ErrUnauthorized)
		}
		return "", fmt.Errorf("failed to submit completion: %w", err)
	}

	if _, err := c.waitMined(ctx, tx); err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}

	c.logger.Info("Escrow completion confirmed",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("on_chain_id", onChainID),
		zap.String("recipient", recipient))

	return tx.Hash().Hex(), nil
}

// RefundBounty returns the escrowed funds to the payer. The contract rejects
// refunds ahead of the expiry.
func (c *Client) RefundBounty(ctx context.Context, payerKey *ecdsa.PrivateKey, onChainID string) (txHash string, err error) {
	defer trackCall("refund", &err)

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	id, ok := new(big.Int).SetString(onChainID, 10)
	if !ok {
		return "", fmt.Errorf("invalid on-chain bounty id: %s", onChainID)
	}

	auth, err := c.transactor(ctx, payerKey)
	if err != nil {
		return "", err
	}

	tx, err := c.contract.Transact(auth, "refundBounty", id)
	if err != nil {
		return "", fmt.Errorf("failed to submit refund: %w", err)
	}

	if _, err := c.waitMined(ctx, tx); err != nil {
		return "", fmt.Errorf("refund: %w", err)
	}

	c.logger.Info("Escrow refund confirmed",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("on_chain_id", onChainID))

	return tx.Hash().Hex(), nil
}

// isNotRelayerRevert matches the contract's relayer-gate revert reason, which
// surfaces during gas estimation.
func isNotRelayerRevert(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not relayer")
}

func trackCall(operation string, err *error) {
	status := "ok"
	if *err != nil {
		status = "failed"
	}
	metrics.EscrowCalls.WithLabelValues(operation, status).Inc()
}
