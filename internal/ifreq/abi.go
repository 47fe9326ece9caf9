package ifreq

// Device-control request codes (linux/sockios.h, linux/if_tun.h).
const (
	SIOCGIFCONF    = 0x8912
	SIOCGIFFLAGS   = 0x8913
	SIOCSIFFLAGS   = 0x8914
	SIOCGIFADDR    = 0x8915
	SIOCSIFADDR    = 0x8916
	SIOCGIFNETMASK = 0x891b
	SIOCSIFNETMASK = 0x891c
	SIOCSIFNAME    = 0x8923
	SIOCSIFHWADDR  = 0x8924
	SIOCGIFHWADDR  = 0x8927
	SIOCGIFINDEX   = 0x8933
	SIOCETHTOOL    = 0x8946
	SIOCGIFVLAN    = 0x8982
	SIOCSIFVLAN    = 0x8983
	SIOCBRADDBR    = 0x89a0
	SIOCBRDELBR    = 0x89a1
	SIOCBRADDIF    = 0x89a2
	SIOCBRDELIF    = 0x89a3
	SIOCDEVPRIVATE = 0x89f0

	TUNSETNOCSUM  = 0x400454c8
	TUNSETIFF     = 0x400454ca
	TUNSETPERSIST = 0x400454cb
)

// Interface flags.
const (
	IFF_UP      = 0x1
	IFF_RUNNING = 0x40
	IFF_TUN     = 0x1
	IFF_TAP     = 0x2
	IFF_NO_PI   = 0x1000
)

// Address families used in sockaddr payloads.
const (
	AF_UNIX      = 1
	AF_INET      = 2
	ARPHRD_ETHER = 1
)

// Legacy bridge commands carried in BridgeArgs over SIOCDEVPRIVATE.
const (
	BRCTL_SET_BRIDGE_FORWARD_DELAY = 8
	BRCTL_SET_BRIDGE_STP_STATE     = 14
)

// NameSize is IFNAMSIZ, the fixed width of a device name field.
const NameSize = 16

const ptrSize = 4 << (^uintptr(0) >> 63)

// UnionSize is the size of the ifreq union on this platform. The largest
// member is struct ifmap (two unsigned longs, a short and three chars).
const UnionSize = 2*ptrSize + 8

// Size is sizeof(struct ifreq).
const Size = NameSize + UnionSize

// DataOffset is the offset of ifr_data, the out-of-line pointer field.
const DataOffset = NameSize
