package contracts

const PoolAbi = `[
	{"anonymous":false,"type":"event","name":"Supply","inputs":[
		{"indexed":true,"internalType":"address","name":"reserve","type":"address"},
		{"indexed":false,"internalType":"address","name":"user","type":"address"},
		{"indexed":true,"internalType":"address","name":"onBehalfOf","type":"address"},
		{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"},
		{"indexed":true,"internalType":"uint16","name":"referralCode","type":"uint16"}
	]},
	{"anonymous":false,"type":"event","name":"Borrow","inputs":[
		{"indexed":true,"internalType":"address","name":"reserve","type":"address"},
		{"indexed":false,"internalType":"address","name":"user","type":"address"},
		{"indexed":true,"internalType":"address","name":"onBehalfOf","type":"address"},
		{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"},
		{"indexed":false,"internalType":"enum DataTypes.InterestRateMode","name":"interestRateMode","type":"uint8"},
		{"indexed":false,"internalType":"uint256","name":"borrowRate","type":"uint256"},
		{"indexed":true,"internalType":"uint16","name":"referralCode","type":"uint16"}
	]},
	{"anonymous":false,"type":"event","name":"Repay","inputs":[
		{"indexed":true,"internalType":"address","name":"reserve","type":"address"},
		{"indexed":true,"internalType":"address","name":"user","type":"address"},
		{"indexed":true,"internalType":"address","name":"repayer","type":"address"},
		{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"},
		{"indexed":false,"internalType":"bool","name":"useATokens","type":"bool"}
	]},
	{"anonymous":false,"type":"event","name":"Withdraw","inputs":[
		{"indexed":true,"internalType":"address","name":"reserve","type":"address"},
		{"indexed":true,"internalType":"address","name":"user","type":"address"},
		{"indexed":true,"internalType":"address","name":"to","type":"address"},
		{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"}
	]},
	{"anonymous":false,"type":"event","name":"LiquidationCall","inputs":[
		{"indexed":true,"internalType":"address","name":"collateralAsset","type":"address"},
		{"indexed":true,"internalType":"address","name":"debtAsset","type":"address"},
		{"indexed":true,"internalType":"address","name":"user","type":"address"},
		{"indexed":false,"internalType":"uint256","name":"debtToCover","type":"uint256"},
		{"indexed":false,"internalType":"uint256","name":"liquidatedCollateralAmount","type":"uint256"},
		{"indexed":false,"internalType":"address","name":"liquidator","type":"address"},
		{"indexed":false,"internalType":"bool","name":"receiveAToken","type":"bool"}
	]}
]`

const PoolDataProviderAbi = `[
	{"type":"function","name":"getAllReservesTokens","stateMutability":"view","inputs":[],"outputs":[
		{"internalType":"struct IPoolDataProvider.TokenData[]","name":"","type":"tuple[]","components":[
			{"internalType":"string","name":"symbol","type":"string"},
			{"internalType":"address","name":"tokenAddress","type":"address"}
		]}
	]},
	{"type":"function","name":"getReserveConfigurationData","stateMutability":"view","inputs":[
		{"internalType":"address","name":"asset","type":"address"}
	],"outputs":[
		{"internalType":"uint256","name":"decimals","type":"uint256"},
		{"internalType":"uint256","name":"ltv","type":"uint256"},
		{"internalType":"uint256","name":"liquidationThreshold","type":"uint256"},
		{"internalType":"uint256","name":"liquidationBonus","type":"uint256"},
		{"internalType":"uint256","name":"reserveFactor","type":"uint256"},
		{"internalType":"bool","name":"usageAsCollateralEnabled","type":"bool"},
		{"internalType":"bool","name":"borrowingEnabled","type":"bool"},
		{"internalType":"bool","name":"stableBorrowRateEnabled","type":"bool"},
		{"internalType":"bool","name":"isActive","type":"bool"},
		{"internalType":"bool","name":"isFrozen","type":"bool"}
	]}
]`
