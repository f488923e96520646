package constants

const USER_AGENT = "batchroom/0.1.0 (+https://github.com/Amund211/batchroom)"
