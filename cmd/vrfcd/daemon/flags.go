package daemon

const (
	HomeFlag               = "home"
	forceFlag              = "force"
	rpcListenerFlag        = "rpc-listener"
	vrfcdDaemonAddressFlag = "daemon-address"
	keyNameFlag            = "key-name"
	seedFlag               = "seed"
	clientSeedFlag         = "client-seed"
	valueFlag              = "value"
	noFulfillFlag          = "no-fulfill"
)
