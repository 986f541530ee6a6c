package blockchain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/FuturICT2/FIN4NotificationServer/internal/domain"
	"github.com/FuturICT2/FIN4NotificationServer/internal/ports"
)

// Events-only ABI fragments for the satellite contracts. Only the events the
// catalog routes are declared; anything else in a log batch is skipped.
const (
	tokenManagementABI = `[
		{"type":"event","name":"Fin4TokenCreated","inputs":[
			{"name":"tokenAddr","type":"address","indexed":false}]}]`

	claimingABI = `[
		{"type":"event","name":"ClaimSubmitted","inputs":[
			{"name":"tokenAddr","type":"address","indexed":false},
			{"name":"claimId","type":"uint256","indexed":false},
			{"name":"claimer","type":"address","indexed":false},
			{"name":"quantity","type":"uint256","indexed":false}]},
		{"type":"event","name":"ClaimApproved","inputs":[
			{"name":"tokenAddr","type":"address","indexed":false},
			{"name":"claimId","type":"uint256","indexed":false},
			{"name":"claimer","type":"address","indexed":false},
			{"name":"mintedQuantity","type":"uint256","indexed":false},
			{"name":"newBalance","type":"uint256","indexed":false}]},
		{"type":"event","name":"ClaimRejected","inputs":[
			{"name":"tokenAddr","type":"address","indexed":false},
			{"name":"claimId","type":"uint256","indexed":false},
			{"name":"claimer","type":"address","indexed":false}]},
		{"type":"event","name":"UpdatedTotalSupply","inputs":[
			{"name":"tokenAddr","type":"address","indexed":false},
			{"name":"totalSupply","type":"uint256","indexed":false}]}]`

	verifyingABI = `[
		{"type":"event","name":"VerifierPending","inputs":[
			{"name":"tokenAddrToReceiveVerifierNotice","type":"address","indexed":false},
			{"name":"claimId","type":"uint256","indexed":false},
			{"name":"verifierTypeAddress","type":"address","indexed":false},
			{"name":"message","type":"string","indexed":false}]},
		{"type":"event","name":"VerifierApproved","inputs":[
			{"name":"tokenAddrToReceiveVerifierNotice","type":"address","indexed":false},
			{"name":"claimId","type":"uint256","indexed":false},
			{"name":"verifierTypeAddress","type":"address","indexed":false},
			{"name":"message","type":"string","indexed":false}]},
		{"type":"event","name":"VerifierRejected","inputs":[
			{"name":"tokenAddrToReceiveVerifierNotice","type":"address","indexed":false},
			{"name":"claimId","type":"uint256","indexed":false},
			{"name":"verifierTypeAddress","type":"address","indexed":false},
			{"name":"message","type":"string","indexed":false}]}]`

	messagingABI = `[
		{"type":"event","name":"NewMessage","inputs":[
			{"name":"sender","type":"address","indexed":false},
			{"name":"receiver","type":"address","indexed":false},
			{"name":"messageId","type":"uint256","indexed":false}]}]`

	mainABI = `[
		{"type":"function","name":"getSatelliteAddresses","stateMutability":"view",
		 "inputs":[],"outputs":[{"name":"","type":"address[]"}]}]`

	erc20NameABI = `[
		{"type":"function","name":"name","stateMutability":"view",
		 "inputs":[],"outputs":[{"name":"","type":"string"}]},
		{"type":"function","name":"symbol","stateMutability":"view",
		 "inputs":[],"outputs":[{"name":"","type":"string"}]}]`

	verifierNameABI = `[
		{"type":"function","name":"getName","stateMutability":"view",
		 "inputs":[],"outputs":[{"name":"","type":"string"}]}]`
)

// getSatelliteAddresses slot order on the main contract.
const (
	satTokenManagement = iota
	satClaiming
	satVerifying
	satMessaging
	satCount
)

// Fin4Watcher subscribes to the satellite contracts' logs and publishes the
// decoded events on the bus, one topic per contract.
type Fin4Watcher struct {
	wsURL        string
	registryAddr common.Address
	bus          ports.EventBus
	onActive     func()
	log          *zap.Logger

	client *ethclient.Client
	abis   map[string]abi.ABI        // contract name -> parsed ABI
	byAddr map[common.Address]string // satellite address -> contract name
}

// NewFin4Watcher wires the watcher; onActive fires once the satellite
// addresses are resolved and the log subscription is live.
func NewFin4Watcher(wsURL, registryAddr string, bus ports.EventBus, onActive func(), log *zap.Logger) (*Fin4Watcher, error) {
	abis := make(map[string]abi.ABI, 4)
	for name, raw := range map[string]string{
		domain.ContractTokenManagement: tokenManagementABI,
		domain.ContractClaiming:        claimingABI,
		domain.ContractVerifying:       verifyingABI,
		domain.ContractMessaging:       messagingABI,
	} {
		parsed, err := abi.JSON(strings.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse %s abi: %w", name, err)
		}
		abis[name] = parsed
	}
	if !common.IsHexAddress(registryAddr) {
		return nil, fmt.Errorf("%w: registry contract %q", domain.ErrInvalidAddress, registryAddr)
	}
	return &Fin4Watcher{
		wsURL:        wsURL,
		registryAddr: common.HexToAddress(registryAddr),
		bus:          bus,
		onActive:     onActive,
		log:          log,
		abis:         abis,
		byAddr:       make(map[common.Address]string),
	}, nil
}

func (w *Fin4Watcher) Run(ctx context.Context) error {
	client, err := w.dialWithRetry(ctx)
	if err != nil {
		return err
	}
	w.client = client

	if err := w.resolveSatellites(ctx); err != nil {
		return fmt.Errorf("resolve satellite contracts: %w", err)
	}

	addresses := make([]common.Address, 0, len(w.byAddr))
	for addr := range w.byAddr {
		addresses = append(addresses, addr)
	}
	logs := make(chan types.Log, 128)
	sub, err := client.SubscribeFilterLogs(ctx, ethereum.FilterQuery{Addresses: addresses}, logs)
	if err != nil {
		return fmt.Errorf("subscribe logs: %w", err)
	}
	defer sub.Unsubscribe()

	// listeners are attached, the router may go live
	if w.onActive != nil {
		w.onActive()
	}
	w.log.Info("watching satellite contracts", zap.Int("contracts", len(addresses)))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return fmt.Errorf("log subscription: %w", err)
		case lg := <-logs:
			w.handleLog(lg)
		}
	}
}

func (w *Fin4Watcher) dialWithRetry(ctx context.Context) (*ethclient.Client, error) {
	for {
		client, err := ethclient.DialContext(ctx, w.wsURL)
		if err == nil {
			w.log.Info("connected to node", zap.String("url", w.wsURL))
			return client, nil
		}
		w.log.Warn("node connection failed, retrying in 10s", zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Second):
		}
	}
}

func (w *Fin4Watcher) resolveSatellites(ctx context.Context) error {
	registry, err := abi.JSON(strings.NewReader(mainABI))
	if err != nil {
		return err
	}
	input, err := registry.Pack("getSatelliteAddresses")
	if err != nil {
		return err
	}
	out, err := w.client.CallContract(ctx, ethereum.CallMsg{To: &w.registryAddr, Data: input}, nil)
	if err != nil {
		return err
	}
	var satellites []common.Address
	if err := registry.UnpackIntoInterface(&satellites, "getSatelliteAddresses", out); err != nil {
		return err
	}
	if len(satellites) < satCount {
		return fmt.Errorf("registry returned %d satellite addresses, want at least %d", len(satellites), satCount)
	}

	w.byAddr[satellites[satTokenManagement]] = domain.ContractTokenManagement
	w.byAddr[satellites[satClaiming]] = domain.ContractClaiming
	w.byAddr[satellites[satVerifying]] = domain.ContractVerifying
	w.byAddr[satellites[satMessaging]] = domain.ContractMessaging
	for addr, name := range w.byAddr {
		w.log.Info("satellite resolved", zap.String("contract", name), zap.String("address", addr.Hex()))
	}
	return nil
}

func (w *Fin4Watcher) handleLog(lg types.Log) {
	contract, ok := w.byAddr[lg.Address]
	if !ok {
		return
	}
	contractABI := w.abis[contract]
	if len(lg.Topics) == 0 {
		return
	}
	ev, err := contractABI.EventByID(lg.Topics[0])
	if err != nil {
		// an event the catalog does not route
		return
	}

	fields := make(map[string]any)
	if err := contractABI.UnpackIntoMap(fields, ev.Name, lg.Data); err != nil {
		w.log.Warn("event decode failed",
			zap.String("contract", contract),
			zap.String("event", ev.Name),
			zap.Error(err))
		return
	}
	var indexed []abi.Argument
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
			w.log.Warn("topic decode failed", zap.String("event", ev.Name), zap.Error(err))
			return
		}
	}

	w.bus.Publish(domain.ContractEvent{
		Contract: contract,
		Kind:     domain.EventKind(ev.Name),
		Fields:   fields,
	})
}

// EthLedgerQuery answers enrichment lookups with read-only contract calls.
type EthLedgerQuery struct {
	client   *ethclient.Client
	erc20    abi.ABI
	verifier abi.ABI
}

func NewEthLedgerQuery(client *ethclient.Client) (*EthLedgerQuery, error) {
	erc20, err := abi.JSON(strings.NewReader(erc20NameABI))
	if err != nil {
		return nil, err
	}
	verifier, err := abi.JSON(strings.NewReader(verifierNameABI))
	if err != nil {
		return nil, err
	}
	return &EthLedgerQuery{client: client, erc20: erc20, verifier: verifier}, nil
}

func (q *EthLedgerQuery) TokenInfo(ctx context.Context, addr string) (domain.TokenInfo, error) {
	name, err := q.callString(ctx, q.erc20, addr, "name")
	if err != nil {
		return domain.TokenInfo{}, err
	}
	symbol, err := q.callString(ctx, q.erc20, addr, "symbol")
	if err != nil {
		return domain.TokenInfo{}, err
	}
	return domain.TokenInfo{Name: name, Symbol: symbol}, nil
}

func (q *EthLedgerQuery) VerifierTypeInfo(ctx context.Context, addr string) (domain.VerifierInfo, error) {
	name, err := q.callString(ctx, q.verifier, addr, "getName")
	if err != nil {
		return domain.VerifierInfo{}, err
	}
	return domain.VerifierInfo{TypeName: name}, nil
}

func (q *EthLedgerQuery) callString(ctx context.Context, contractABI abi.ABI, addr, method string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidAddress, addr)
	}
	to := common.HexToAddress(addr)
	input, err := contractABI.Pack(method)
	if err != nil {
		return "", err
	}
	out, err := q.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return "", fmt.Errorf("call %s on %s: %w", method, addr, err)
	}
	var result string
	if err := contractABI.UnpackIntoInterface(&result, method, out); err != nil {
		return "", fmt.Errorf("unpack %s: %w", method, err)
	}
	return result, nil
}
