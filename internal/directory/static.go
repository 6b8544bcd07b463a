package directory

// Static is the safety-net symbol table. These entries are force-merged
// over every list refresh and survive fetch failures, so the well-known
// symbols keep resolving even when the public list feed is down.
var Static = map[string]string{
	"SOL":  "So11111111111111111111111111111111111111112",
	"USDC": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	"USDT": "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB",
	"JUP":  "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN",
	"JTO":  "jtojtomepa8beP8AuQc6eXt5FriJwfFMwGQx2v2f9mCL",
	"BONK": "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
}
